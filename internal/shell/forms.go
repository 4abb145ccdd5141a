// internal/shell/forms.go
package shell

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"shelfkeeper/internal/errors"
)

type bookForm struct {
	Title  string `form:"title" validate:"required,max=200"`
	Author string `form:"author" validate:"required,max=200"`
	Genre  string `form:"genre" validate:"required,max=100"`
}

type registrationForm struct {
	Name  string `form:"name" validate:"required,max=100"`
	Email string `form:"email" validate:"required,email"`
}

// formValidator wraps go-playground/validator and reports failures as
// Validation errors with per-field messages.
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("form"); name != "" {
			return name
		}
		return fld.Name
	})
	return &formValidator{v: v}
}

func (fv *formValidator) validate(form any) error {
	err := fv.v.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}
	details := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		details[e.Field()] = friendlyMessage(e)
	}
	return errors.ValidationWithDetails("invalid input", details)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	default:
		return "is invalid"
	}
}

// describeValidation renders the field messages of a Validation error in a
// stable order, e.g. "email must be a valid email address".
func describeValidation(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	details, ok := e.Details.(map[string]string)
	if !ok {
		return e.Message
	}
	fields := make([]string, 0, len(details))
	for f := range details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+details[f])
	}
	return strings.Join(parts, "; ")
}
