package publishers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gazette-app/gazette/internal/platform/httpx"
)

// Publisher is an organization posts may be attributed to.
type Publisher struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries user supplied publisher attributes.
type Input struct {
	Name        string `form:"name" validate:"required,min=2,max=100"`
	Description string `form:"description" validate:"max=500"`
	Active      bool   `form:"active"`
}

// PostSummary is the slice of a post shown on a publisher page.
type PostSummary struct {
	ID          int64
	Title       string
	AuthorEmail string
	CreatedAt   time.Time
}

// ValidationError lists per-field problems with an Input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %s", k, e.Fields[k])
	}
	return "publishers: invalid publisher: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match httpx.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}
