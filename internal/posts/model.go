package posts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gazette-app/gazette/internal/platform/httpx"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus accepts draft or published. Anything else is an error.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusPublished:
		return s, nil
	}
	return "", fmt.Errorf("posts: unknown status %q", raw)
}

// Post is a piece of content owned by a single user.
type Post struct {
	ID          int64
	Title       string
	Content     string
	Status      Status
	UserID      int64
	PublisherID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Filled by listing queries.
	AuthorEmail   string
	PublisherName string
}

// OwnerID identifies the owning user.
func (p Post) OwnerID() int64 { return p.UserID }

// Draft reports whether the post is unpublished.
func (p Post) Draft() bool { return p.Status == StatusDraft }

// Input carries the editable attributes of a post.
type Input struct {
	Title       string `form:"title" validate:"required,min=3,max=100"`
	Content     string `form:"content" validate:"required,min=10"`
	Status      Status `form:"status" validate:"omitempty,oneof=draft published"`
	PublisherID *int64 `form:"publisher_id" validate:"omitempty,gt=0"`
	// SaveDraft is set by the "save as draft" submit button and wins over Status.
	SaveDraft bool `form:"-"`
}

// Filter narrows the my-posts listing.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterDraft     Filter = "draft"
	FilterPublished Filter = "published"
)

// ParseFilter maps a query value to a Filter, falling back to FilterAll.
func ParseFilter(raw string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case FilterDraft, FilterPublished:
		return f
	}
	return FilterAll
}

// Status returns the status the filter selects, or "" for all.
func (f Filter) Status() Status {
	switch f {
	case FilterDraft:
		return StatusDraft
	case FilterPublished:
		return StatusPublished
	}
	return ""
}

// ValidationError lists per-field problems with a post.
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
	return "posts: invalid post: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match httpx.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}
