// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tickerRegex accepts common ticker shapes (AAPL, BRK.B, RDS-A).
var tickerRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,9}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("visibility", validateVisibility)
		_ = v.RegisterValidation("ticker", validateTicker)
	}
}

func validateVisibility(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "private", "public", "smart_shared":
		return true
	}
	return false
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}
