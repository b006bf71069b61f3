package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the claim set carried by every token minted by the identity core.
//
// Optional claims are omitted when empty so the issuing strategy fully controls
// token content.
type Claims struct {
	TokenType       string   `json:"tt"`
	EntityType      string   `json:"ent"`
	Domain          string   `json:"dom,omitempty"`
	ClientID        string   `json:"cid,omitempty"`
	TrackingSession string   `json:"sid,omitempty"`
	ExternalID      string   `json:"ext,omitempty"`
	Scopes          []string `json:"scp,omitempty"`
	Permissions     []string `json:"perms,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	// Restricted marks Scopes and Permissions as a narrowing of the subject's
	// grants rather than an informational copy.
	Restricted bool `json:"rst,omitempty"`
	jwt.RegisteredClaims
}
