// Package validation wraps go-playground/validator with the rules shared by
// the services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// TagPositiveDecimal accepts decimal.Decimal values greater than zero.
	TagPositiveDecimal = "positive_decimal"
	// TagNonNegativeDecimal accepts decimal.Decimal values of zero or more.
	TagNonNegativeDecimal = "nonneg_decimal"
)

var validate = New()

// New returns a validator that reports json field names and knows the
// decimal rules.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	RegisterDecimalRules(v)
	return v
}

// RegisterDecimalRules exposes decimal.Decimal to validator as its string
// form and adds the decimal tags on top of it.
func RegisterDecimalRules(v *validator.Validate) {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation(TagPositiveDecimal, func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	_ = v.RegisterValidation(TagNonNegativeDecimal, func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
}

// Struct runs the validate tags on s and flattens the failures into one
// error.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the root type name: items[0].quantity, not OrderCreatedEvent.items[0].quantity
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
