package config

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/mcphub/mcphub/internal/domain/upstream"
)

func TestFormatValidationErrors(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	d := upstream.Descriptor{} // Name, Endpoint, Timeout all fail "required"/"min".

	err := v.Struct(&d)
	if err == nil {
		t.Fatal("expected validation error for empty descriptor")
	}

	formatted := formatValidationErrors(err)
	if !strings.Contains(formatted.Error(), "required") {
		t.Errorf("formatValidationErrors() = %q, want it to mention \"required\"", formatted.Error())
	}
}
