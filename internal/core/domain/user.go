package domain

import (
	"strings"
	"time"
)

// Permission grants a single action on a resource, e.g. ("orders", "update").
type Permission struct {
	ID       string `json:"id,omitempty" bson:"id,omitempty"`
	Resource string `json:"resource" bson:"resource"`
	Action   string `json:"action" bson:"action"`
}

// Role groups the permissions assigned to a user.
type Role struct {
	ID          string       `json:"id" bson:"id"`
	Name        string       `json:"name" bson:"name"`
	Permissions []Permission `json:"permissions" bson:"permissions"`
}

// User models the authenticated staff member as returned by the auth API.
type User struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Role      *Role     `json:"role,omitempty" bson:"role,omitempty"`
	IsActive  bool      `json:"isActive" bson:"is_active"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// RoleName returns the role name or an empty string when no role is attached.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Can reports whether the user's role carries the (resource, action) permission.
// Matching is case-insensitive; a "*" action on a resource grants every action.
func (u *User) Can(resource, action string) bool {
	if u == nil || u.Role == nil {
		return false
	}
	for _, p := range u.Role.Permissions {
		if !strings.EqualFold(p.Resource, resource) {
			continue
		}
		if p.Action == "*" || strings.EqualFold(p.Action, action) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the manager's record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Role != nil {
		r := *u.Role
		r.Permissions = append([]Permission(nil), u.Role.Permissions...)
		c.Role = &r
	}
	return &c
}
