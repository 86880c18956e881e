package auth

import (
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified payload of an access token.
// Permissions is nil when the token carries no "permissions" key at all.
type Claims struct {
	jwt.RegisteredClaims
	Permissions     []string `json:"permissions,omitempty"`
	Scope           string   `json:"scope,omitempty"`
	AuthorizedParty string   `json:"azp,omitempty"`
}

// HasPermissionsClaim reports whether the token included a permissions list
func (c *Claims) HasPermissionsClaim() bool {
	return c != nil && c.Permissions != nil
}

// HasPermission reports whether permission is an exact member of the permissions list
func (c *Claims) HasPermission(permission string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Permissions, permission)
}

// Scopes splits the space-delimited scope claim
func (c *Claims) Scopes() []string {
	if c == nil || c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}
