// Package http provides HTTP handlers for customer registration and lookup.
// Confidential customer fields are decrypted only on the way out and card
// numbers never leave the service.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/fieldcrypt/internal/customer/http/dto"
	customerUseCase "github.com/allisson/fieldcrypt/internal/customer/usecase"
	"github.com/allisson/fieldcrypt/internal/httputil"
)

// CustomerHandler handles HTTP requests for customer operations.
type CustomerHandler struct {
	customerUseCase customerUseCase.UseCase
	logger          *slog.Logger
}

// NewCustomerHandler creates a new customer handler with required dependencies.
func NewCustomerHandler(customerUseCase customerUseCase.UseCase, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerUseCase: customerUseCase,
		logger:          logger,
	}
}

// RegisterHandler registers a customer with its payment cards.
// POST /v1/customers
// Returns 201 Created with the decrypted customer.
func (h *CustomerHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterCustomerRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	customer, err := h.customerUseCase.RegisterCustomer(c.Request.Context(), dto.ToRegisterCustomerInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCustomerResponse(customer))
}

// GetHandler retrieves and decrypts a customer by ID.
// GET /v1/customers/:id
func (h *CustomerHandler) GetHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid customer id: %w", err), h.logger)
		return
	}

	customer, err := h.customerUseCase.GetCustomer(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToCustomerResponse(customer))
}

// FindByEmailHandler searches customers through the blind index of their email.
// GET /v1/customers?email=...
func (h *CustomerHandler) FindByEmailHandler(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		httputil.HandleBadRequestGin(c, fmt.Errorf("email query parameter is required"), h.logger)
		return
	}

	customers, err := h.customerUseCase.FindCustomersByEmail(c.Request.Context(), email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToListCustomersResponse(customers))
}
