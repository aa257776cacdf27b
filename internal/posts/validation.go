package posts

import (
	"strings"

	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
)

var validate = shared.NewValidator()

const ownerRoleMessage = "must have 'user' role to create posts"

func normalize(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	return in
}

// Validate checks the post attributes and that the owner may hold posts.
func Validate(owner rbac.Identity, in Input) error {
	fields := shared.FieldErrors(validate.Struct(in))
	if fields == nil {
		fields = make(map[string]string)
	}
	if owner.Role != rbac.RoleUser {
		fields["user"] = ownerRoleMessage
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// resolveStatus applies the draft button and the published default.
func resolveStatus(in Input) Status {
	if in.SaveDraft {
		return StatusDraft
	}
	if in.Status == "" {
		return StatusPublished
	}
	return in.Status
}
