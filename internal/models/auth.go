package models

import "github.com/golang-jwt/jwt/v5"

// AdminRole guards administrative endpoints.
const AdminRole = "ADMIN"

// IdentityClaims are minted by the external identity-verification
// service. This service only parses them; it never issues tokens. For
// student tokens the first/last name and group carry the identity that
// service confirmed against its own records, and the verified
// submission path persists exactly those fields.
type IdentityClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	GroupCode string `json:"group_code"`
	jwt.RegisteredClaims
}

// VerifiedIdentity reports whether the claims carry a confirmed
// student identity.
func (c *IdentityClaims) VerifiedIdentity() bool {
	return c != nil && c.FirstName != "" && c.LastName != "" && c.GroupCode != ""
}
