package httputil

import (
	"fmt"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"
)

// Pagination defaults.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page is an offset/limit window over a list.
type Page struct {
	Offset int `form:"offset" json:"offset"`
	Limit  int `form:"limit" json:"limit"`
}

// Validate checks the window bounds.
func (p Page) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Offset, validation.Min(0)),
		validation.Field(&p.Limit, validation.Min(1), validation.Max(MaxPageLimit)),
	)
}

// ParsePagination binds the offset and limit query parameters. Missing values
// default to 0 and DefaultPageLimit.
func ParsePagination(c *gin.Context) (Page, error) {
	page := Page{Limit: DefaultPageLimit}
	if err := c.ShouldBindQuery(&page); err != nil {
		return Page{}, fmt.Errorf("invalid pagination parameters: offset and limit must be integers")
	}
	if err := page.Validate(); err != nil {
		return Page{}, fmt.Errorf("invalid pagination parameters: %w", err)
	}
	return page, nil
}

// Paginate returns the items inside the page window. The result is never nil so
// it encodes as an empty JSON array.
func Paginate[T any](items []T, page Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	return items[page.Offset:min(page.Offset+page.Limit, len(items))]
}
