package validation

import (
	"errors"
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

func TestRules(t *testing.T) {
	rules := map[string]validation.Rule{
		"card":    CardNumber,
		"country": CountryCode,
		"phone":   Phone,
		"email":   Email,
		"trimmed": NoWhitespace,
		"present": NotBlank,
	}

	tests := []struct {
		rule  string
		value string
		valid bool
	}{
		{"card", "4111111111111111", true},
		{"card", "378282246310005", true},
		{"card", "4111111111111112", false},
		{"card", "42424242", false},
		{"card", "4111-1111-1111-1111", false},
		{"card", "٤١١١١١١١١١١١١١١١", false},
		{"country", "BR", true},
		{"country", "br", false},
		{"country", "BRA", false},
		{"phone", "+5511987654321", true},
		{"phone", "11987654321", false},
		{"phone", "+0123456", false},
		{"email", "user@example.com", true},
		{"email", "first.last+tag@mail.example.com", true},
		{"email", "userexample.com", false},
		{"email", "user@", false},
		{"email", "@example.com", false},
		{"email", "user@example", false},
		{"email", "user @example.com", false},
		{"trimmed", "Alice Doe", true},
		{"trimmed", " Alice", false},
		{"trimmed", "Alice\t", false},
		{"present", "x", true},
		{"present", " \n ", false},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.value, func(t *testing.T) {
			err := rules[tt.rule].Validate(tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRules_EmptyIsValid(t *testing.T) {
	// Presence is enforced by validation.Required, not by the format rules.
	for _, rule := range []validation.Rule{CardNumber, CountryCode, Phone, Email, NoWhitespace} {
		assert.NoError(t, rule.Validate(""))
	}
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(errors.New("email: must be a valid email address."))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.EqualError(t, err, "email: must be a valid email address.: invalid input")
}
