// Package team defines workspace members and the display-name directory used
// by the assignee views.
package team

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unassigned is the sentinel display name for tasks without an assignee.
// It is filterable as its own bucket.
const Unassigned = "Unassigned"

// Role describes a member's position in the workspace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Member is a person in the workspace.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (m Member) EntityID() string { return m.ID }

// Validate checks a member before it is created remotely.
func Validate(m Member) error {
	if m.Name == "" {
		return fmt.Errorf("member name is required")
	}
	if m.Email == "" {
		return fmt.Errorf("member email is required")
	}
	switch m.Role {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest, "":
	default:
		return fmt.Errorf("invalid member role %q", m.Role)
	}
	return nil
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// DisplayName canonicalizes a raw member name for presentation.
func DisplayName(name string) string {
	if name == "" {
		return Unassigned
	}
	return titleCaser.String(name)
}

// Directory resolves member IDs to display names from a member snapshot.
type Directory map[string]string

// NewDirectory builds a Directory from the given members.
func NewDirectory(members []Member) Directory {
	d := make(Directory, len(members))
	for _, m := range members {
		d[m.ID] = DisplayName(m.Name)
	}
	return d
}

// Resolve returns the display name for a member ID. An empty ID or an ID
// with no matching member resolves to the Unassigned sentinel.
func (d Directory) Resolve(id string) string {
	if id == "" {
		return Unassigned
	}
	if name, ok := d[id]; ok {
		return name
	}
	return Unassigned
}
