package handler

import (
	"errors"
	"sync"

	"bankcore/internal/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "decimal" tag to gin's validator: the field
// must be a string that parses as a decimal number. Range checks are left to
// the handlers and services.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			_, parseErr := money.ParseExact(fl.Field().String())
			return parseErr == nil || errors.Is(parseErr, money.ErrOutOfRange)
		})
	})
	return err
}
