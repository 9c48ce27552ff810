package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// Validation errors.
var (
	// ErrValidation indicates struct tag validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrBinding indicates the JSON body or query string could not be decoded.
	ErrBinding = errors.New("binding failed")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// customValidators are the request tags beyond validator's built-ins.
var customValidators = map[string]validator.Func{
	// notempty rejects whitespace-only strings.
	"notempty": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},

	// singleline rejects control characters, line breaks included. Names
	// and culprits end up in path segments and Discord headings.
	"singleline": func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	},

	// sortkey accepts whatever domain.ParseSortKey accepts.
	"sortkey": func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSortKey(fl.Field().String())
		return err == nil
	},
}

// fieldMessages maps validation tags to messages; {param} is replaced
// with the tag parameter.
var fieldMessages = map[string]string{
	"required":   "this field is required",
	"notempty":   "must not be empty",
	"singleline": "must not contain line breaks or control characters",
	"sortkey":    "must be one of: upvotes, date",
	"gte":        "must be greater than or equal to {param}",
	"lte":        "must be less than or equal to {param}",
	"oneof":      "must be one of: {param}",
}

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)

		for tag, fn := range customValidators {
			if err := validate.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("registering %q validator: %v", tag, err))
			}
		}
	})

	return validate
}

// fieldName reports the JSON name of a field, or its query name for
// query structs, so error details use the names clients sent.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")

		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}

	return fld.Name
}

// Validate checks struct tags only.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// Validatable is implemented by requests with rules beyond struct tags.
// Validate should return a domain validation error naming the field.
type Validatable interface {
	Validate() error
}

// ValidateAll checks struct tags, then the Validate method when v
// implements Validatable.
func ValidateAll(v any) error {
	if err := Validate(v); err != nil {
		return err
	}

	if validatable, ok := v.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return ValidateAll(v)
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return ValidateAll(v)
}

// ValidationErrors maps each failed field to a readable message.
// Errors that did not come from tag validation yield an empty map.
func ValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	return fields
}

func fieldMessage(fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()

	if tag == "min" || tag == "max" {
		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}

		bound := "at least"
		if tag == "max" {
			bound = "at most"
		}

		return "must be " + bound + " " + param + unit
	}

	if msg, ok := fieldMessages[tag]; ok {
		return strings.ReplaceAll(msg, "{param}", param)
	}

	return "failed validation: " + tag
}
