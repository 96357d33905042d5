package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := Bind(c, out); err != nil {
		return err
	}
	return Validate(c, out, v)
}

// Bind decodes the JSON body into out, writing a 400 on malformed input.
func Bind(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

// Validate runs v over out, or only over the named fields when any are
// given, writing a 400 listing the failed fields.
func Validate(c *gin.Context, out interface{}, v *validatorv10.Validate, fields ...string) error {
	var err error
	if len(fields) > 0 {
		err = v.StructPartial(out, fields...)
	} else {
		err = v.Struct(out)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Validation failed",
			"fields":  validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Namespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
