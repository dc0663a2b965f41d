package land

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidForm is returned when a submission fails schema validation.
var ErrInvalidForm = errors.New("land form is invalid")

// ErrUnknownField is returned by Fields.Set for names outside the schema.
var ErrUnknownField = errors.New("unknown land field")

// Fields holds the six required registration attributes.
type Fields struct {
	Area   string `json:"area" validate:"required"`
	Survey string `json:"survey" validate:"required"`
	State  string `json:"state" validate:"required"`
	Price  string `json:"price" validate:"required"`
	PID    string `json:"pid" validate:"required"`
	City   string `json:"city" validate:"required"`
}

var messages = map[string]string{
	FieldArea:   "Please enter area.",
	FieldSurvey: "Please enter survey No",
	FieldState:  "Please enter state.",
	FieldPrice:  "Please enter land price.",
	FieldPID:    "PID number required",
	FieldCity:   "city name required",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Set assigns a field by its form name. Values are trimmed, so a blank
// value counts as missing.
func (f *Fields) Set(name, value string) error {
	value = normalize(value)
	switch name {
	case FieldArea:
		f.Area = value
	case FieldSurvey:
		f.Survey = value
	case FieldState:
		f.State = value
	case FieldPrice:
		f.Price = value
	case FieldPID:
		f.PID = value
	case FieldCity:
		f.City = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// Get returns a field by its form name.
func (f Fields) Get(name string) string {
	switch name {
	case FieldArea:
		return f.Area
	case FieldSurvey:
		return f.Survey
	case FieldState:
		return f.State
	case FieldPrice:
		return f.Price
	case FieldPID:
		return f.PID
	case FieldCity:
		return f.City
	}
	return ""
}

// ValidationErrors maps field names to user-facing messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+v[name])
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets callers match ErrInvalidForm with errors.Is.
func (v ValidationErrors) Unwrap() error { return ErrInvalidForm }

// Validate checks the fields against the schema. It returns nil or a
// ValidationErrors value.
func (f Fields) Validate() error {
	trimmed := Fields{
		Area:   normalize(f.Area),
		Survey: normalize(f.Survey),
		State:  normalize(f.State),
		Price:  normalize(f.Price),
		PID:    normalize(f.PID),
		City:   normalize(f.City),
	}
	err := schema().Struct(trimmed)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = messages[fe.Field()]
	}
	return out
}

// Valid reports whether all six fields are non-empty.
func (f Fields) Valid() bool {
	return f.Validate() == nil
}
