// Package validate checks decoded records against their struct tags and
// reports failures as taxonomy errors.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/refitt/refitt-api/internal/apierr"
)

// Validator checks records before they are stored.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that understands decimal fields and
// reports fields by their JSON names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Payload validates a record decoded from a request body.
func (v *Validator) Payload(x any) error {
	return v.check(apierr.PayloadInvalid, x)
}

// Params validates a record after query parameters were applied to it.
func (v *Validator) Params(x any) error {
	return v.check(apierr.ParameterInvalid, x)
}

func (v *Validator) check(kind apierr.Kind, x any) error {
	err := v.v.Struct(x)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return apierr.Wrap(kind, err, "Invalid value for '"+fields[0].Field()+"'")
	}
	return errors.Wrap(err, "validate")
}
