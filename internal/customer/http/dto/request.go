// Package dto provides data transfer objects for the customer HTTP layer.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/fieldcrypt/internal/validation"
)

// CardRequest represents a payment card in the registration request
type CardRequest struct {
	Pan        string `json:"pan"`
	HolderName string `json:"holder_name"`
}

// Validate checks that the card carries its required fields
func (r CardRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Pan, validation.Required.Error("pan is required")),
		validation.Field(&r.HolderName, validation.Required.Error("holder name is required")),
	)
}

// RegisterCustomerRequest represents the API request for customer registration
type RegisterCustomerRequest struct {
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	DocumentNumber  string        `json:"document_number"`
	DocumentCountry string        `json:"document_country"`
	Cards           []CardRequest `json:"cards"`
}

// Validate checks the request structure. Format rules are enforced by the use case.
func (r *RegisterCustomerRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required.Error("name is required")),
		validation.Field(&r.Email, validation.Required.Error("email is required")),
		validation.Field(&r.Cards),
	)
	return appValidation.WrapValidationError(err)
}
