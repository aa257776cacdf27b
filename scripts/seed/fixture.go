package main

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gazette-app/gazette/internal/posts"
	"github.com/gazette-app/gazette/internal/rbac"
)

//go:embed fixture.yaml
var defaultFixture []byte

type fixture struct {
	Users      []userFixture      `yaml:"users"`
	Publishers []publisherFixture `yaml:"publishers"`
	Posts      []postFixture      `yaml:"posts"`
}

type userFixture struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type publisherFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

type postFixture struct {
	Author    string `yaml:"author"`
	Publisher string `yaml:"publisher"`
	Status    string `yaml:"status"`
	Title     string `yaml:"title"`
	Content   string `yaml:"content"`
}

func decodeFixture(r io.Reader) (fixture, error) {
	var f fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, f.validate()
}

// validate applies the same rules the application enforces so seeded data
// never violates them.
func (f fixture) validate() error {
	roles := make(map[string]rbac.Role, len(f.Users))
	for _, u := range f.Users {
		role, err := rbac.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		if len(u.Password) < 8 {
			return fmt.Errorf("user %s: password too short", u.Email)
		}
		roles[strings.ToLower(u.Email)] = role
	}
	pubs := make(map[string]bool, len(f.Publishers))
	for _, p := range f.Publishers {
		if n := len(strings.TrimSpace(p.Name)); n < 2 || n > 100 {
			return fmt.Errorf("publisher %q: name must be 2-100 characters", p.Name)
		}
		pubs[p.Name] = true
	}
	for _, p := range f.Posts {
		role, ok := roles[strings.ToLower(p.Author)]
		if !ok {
			return fmt.Errorf("post %q: unknown author %s", p.Title, p.Author)
		}
		if !rbac.Grants(role, rbac.CapCreatePosts) {
			return fmt.Errorf("post %q: author %s has role %s and cannot own posts", p.Title, p.Author, role)
		}
		if p.Publisher != "" && !pubs[p.Publisher] {
			return fmt.Errorf("post %q: unknown publisher %s", p.Title, p.Publisher)
		}
		if _, err := posts.ParseStatus(p.Status); err != nil {
			return fmt.Errorf("post %q: %w", p.Title, err)
		}
		if n := len(p.Title); n < 3 || n > 100 {
			return fmt.Errorf("post %q: title must be 3-100 characters", p.Title)
		}
		if len(strings.TrimSpace(p.Content)) < 10 {
			return fmt.Errorf("post %q: content too short", p.Title)
		}
	}
	return nil
}

func (p publisherFixture) active() bool {
	return p.Active == nil || *p.Active
}
