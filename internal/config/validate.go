package config

// file: internal/config/validate.go

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config-file names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return errors.Wrap(err, "config validation failed")
		}
		msgs := make([]string, 0, len(vErrs))
		for _, fe := range vErrs {
			msgs = append(msgs, describe(fe))
		}
		return errors.Newf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	if c.Bridge.Transport == TransportNATS && c.NATS.URL == "" {
		return errors.New("invalid configuration: nats.url is required when bridge.transport is nats")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	// Drop the root type name: "Config.bridge.transport" -> "bridge.transport".
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails '%s=%s' (got '%v')", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s fails '%s'", field, fe.Tag())
}
