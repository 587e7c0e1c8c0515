// Package dto provides data transfer objects for the customer HTTP layer.
package dto

import (
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/customer/usecase"
)

// ToRegisterCustomerInput converts a RegisterCustomerRequest DTO to a use case input
func ToRegisterCustomerInput(req RegisterCustomerRequest) usecase.RegisterCustomerInput {
	input := usecase.RegisterCustomerInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		DocumentNumber:  req.DocumentNumber,
		DocumentCountry: req.DocumentCountry,
	}
	for _, card := range req.Cards {
		input.Cards = append(input.Cards, usecase.RegisterCardInput{
			Pan:        card.Pan,
			HolderName: card.HolderName,
		})
	}
	return input
}

// ToCustomerResponse converts a decrypted domain Customer to a CustomerResponse DTO
func ToCustomerResponse(customer *domain.Customer) CustomerResponse {
	cards := make([]CardResponse, 0, len(customer.Cards))
	for _, card := range customer.Cards {
		cards = append(cards, CardResponse{
			ID:         card.ID,
			HolderName: card.HolderName,
			Last4:      card.Last4,
		})
	}

	return CustomerResponse{
		ID:              customer.ID,
		Name:            customer.Name,
		Email:           customer.Email,
		Phone:           customer.Phone,
		DocumentNumber:  customer.DocumentNumber,
		DocumentCountry: customer.DocumentCountry,
		Cards:           cards,
		EncryptionKeyID: customer.EncryptionKeyID,
		HmacKeyID:       customer.HmacKeyID,
		CreatedAt:       customer.CreatedAt,
		UpdatedAt:       customer.UpdatedAt,
	}
}

// ToListCustomersResponse converts decrypted customers to a ListCustomersResponse DTO
func ToListCustomersResponse(customers []*domain.Customer) ListCustomersResponse {
	data := make([]CustomerResponse, 0, len(customers))
	for _, customer := range customers {
		data = append(data, ToCustomerResponse(customer))
	}
	return ListCustomersResponse{Data: data}
}
