package response

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

// ValidationError flattens ozzo validation output into a 400 carrying
// field-level messages.
func ValidationError(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			fields[field] = fieldErr.Error()
		}
		return errorbank.BadRequest("validation error", errorbank.WithFields(fields))
	}
	return errorbank.BadRequest(err.Error())
}
