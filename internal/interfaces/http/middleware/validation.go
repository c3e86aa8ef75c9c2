package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
)

// SetupValidator makes binding errors name the json (or form) field the client sent
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
}

// ruleMessages maps a validator tag to a message; %s receives the tag parameter
var ruleMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
	"oneof":    "Must be one of: %s",
	"gt":       "Must be greater than %s",
	"gte":      "Must be greater than or equal to %s",
	"lt":       "Must be less than %s",
	"lte":      "Must be less than or equal to %s",
	"len":      "Must be exactly %s characters",
	"numeric":  "Must be numeric",
	"datetime": "Must be a date in the format %s",
}

func ruleMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "min", "max":
		bound := "least"
		if e.Tag() == "max" {
			bound = "most"
		}
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Must be at %s %s characters", bound, e.Param())
		}
		return fmt.Sprintf("Must be at %s %s", bound, e.Param())
	}
	tmpl, ok := ruleMessages[e.Tag()]
	if !ok {
		return "Invalid value"
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, e.Param())
	}
	return tmpl
}

// FormatValidationErrors lists one detail per failed field. Errors that are not
// validator errors, such as malformed JSON, produce no details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, e := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: e.Field(), Message: ruleMessage(e)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}
