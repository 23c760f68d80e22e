package token

import (
	"time"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/utils"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiryBuffer is subtracted from ExpiresAt so that a token is treated as
// expired slightly before the provider would reject it.
const ExpiryBuffer = 60 * time.Second

// TokenSet is the access/refresh/id token bundle held by the console.
// ExpiresAt is computed once when the set is issued and never recomputed.
// A refresh replaces the whole set.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
	ExpiresAt    int64  `json:"expiresAt"` // epoch milliseconds
	TokenType    string `json:"tokenType,omitempty"`
}

// NewTokenSet builds a set from a provider response issued at issuedAt.
// previousRefreshToken is kept when the response carries no refresh token.
func NewTokenSet(resp oauth2.TokenResponse, issuedAt time.Time, previousRefreshToken string) *TokenSet {
	refreshToken := utils.Value(resp.RefreshToken)
	if refreshToken == "" {
		refreshToken = previousRefreshToken
	}
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = oauth2.DefaultTokenType
	}
	return &TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshToken,
		IDToken:      utils.Value(resp.IDToken),
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    issuedAt.UnixMilli() + resp.ExpiresIn*1000,
		TokenType:    tokenType,
	}
}

// IsPresent reports whether the set holds an access token or a refresh token.
func (t *TokenSet) IsPresent() bool {
	return t != nil && (t.AccessToken != "" || t.RefreshToken != "")
}

// HasRefreshToken reports whether a refresh can be attempted.
func (t *TokenSet) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != ""
}

// IsExpired reports now > ExpiresAt - ExpiryBuffer. A nil set or one without
// ExpiresAt is always expired.
func (t *TokenSet) IsExpired(now time.Time) bool {
	if t == nil || t.ExpiresAt == 0 {
		return true
	}
	return now.UnixMilli() > t.ExpiresAt-ExpiryBuffer.Milliseconds()
}

// AccessTokenValid reports now < ExpiresAt - ExpiryBuffer for a set holding
// an access token. At the exact boundary the token is neither valid nor
// expired.
func (t *TokenSet) AccessTokenValid(now time.Time) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresAt == 0 {
		return false
	}
	return now.UnixMilli() < t.ExpiresAt-ExpiryBuffer.Milliseconds()
}

// Expiry returns ExpiresAt as a time.
func (t *TokenSet) Expiry() time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresAt)
}

// Clone returns a copy that callers may keep without sharing state.
func (t *TokenSet) Clone() *TokenSet {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
