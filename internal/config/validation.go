package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// revision accepts the revisions that have a status code range table
	if err := v.RegisterValidation("revision", func(fl validator.FieldLevel) bool {
		_, err := nvme.RangesFor(nvme.Revision(fl.Field().String()))
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
