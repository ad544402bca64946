package description

import (
	"errors"
	"fmt"
	"go/token"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

var (
	// ErrInvalid is returned for descriptions that fail validation.
	ErrInvalid = errors.New("invalid description")
	// ErrReservedName is returned with ErrInvalid for names that collide
	// with methods of generated graphs or Go keywords.
	ErrReservedName = errors.New("name is reserved")

	identRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

	// reserved names collide with methods of generated graphs.
	reserved = map[string]struct{}{
		"process":       {},
		"processsample": {},
		"setinput":      {},
		"setnormalized": {},
		"output":        {},
		"samplerate":    {},
		"setsamplerate": {},
		"pushevent":     {},
		"drainevents":   {},
		"handoff":       {},
	}

	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return identRegexp.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks description structure and name uniqueness. All problems
// are reported, combined into one error.
func Validate(d *Description) error {
	if d == nil {
		return fmt.Errorf("%w: nil description", ErrInvalid)
	}
	var errs error
	if err := getValidator().Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, fe := range fieldErrs {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrInvalid, fieldMessage(fe)))
		}
	}

	seen := make(map[string]string)
	claim := func(kind, name string) {
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if other, ok := seen[key]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s %q collides with %s", ErrInvalid, kind, name, other))
			return
		}
		if Reserved(name) {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s %q: %w", ErrInvalid, kind, name, ErrReservedName))
		}
		seen[key] = fmt.Sprintf("%s %q", kind, name)
	}
	for _, in := range d.Inputs {
		claim("input", in.Name)
		if in.Kind == "event" && (in.Default != nil || len(in.Range) > 0 || in.Curve != "" || in.Ramp > 0) {
			errs = multierr.Append(errs, fmt.Errorf("%w: event input %q cannot have value shaping", ErrInvalid, in.Name))
		}
		if len(in.Range) == 2 || in.Curve != "" || in.Ramp > 0 {
			if _, err := in.Spec(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%w: input %q: %v", ErrInvalid, in.Name, err))
			}
		}
	}
	for _, out := range d.Outputs {
		claim("output", out.Name)
	}
	for _, n := range d.Nodes {
		claim("node", n.Name)
		for _, a := range n.Args {
			if math.IsNaN(float64(a)) || math.IsInf(float64(a), 0) {
				errs = multierr.Append(errs, fmt.Errorf("%w: node %q has non-finite argument", ErrInvalid, n.Name))
				break
			}
		}
	}
	return errs
}

// Reserved reports if name cannot be used for inputs, outputs or nodes.
// Names are compared case-insensitively.
func Reserved(name string) bool {
	key := strings.ToLower(name)
	_, ok := reserved[key]
	return ok || token.IsKeyword(key)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "ident":
		return fmt.Sprintf("%s %q is not a valid name", fe.Namespace(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", fe.Namespace(), fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s=%s check", fe.Namespace(), fe.Tag(), fe.Param())
}
