// Package auth implements a minimal HMAC bearer-token service. A token is
// the base64url-encoded JSON claims followed by a dot and the hex HMAC-SHA256
// of that payload. The core trusts the four claims verbatim once verification
// succeeds.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osoriodev/ragbase/internal/model"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the identity assertions carried by a token.
type Claims struct {
	Subject   string `json:"sub"`
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
}

// TenantContext converts verified claims into the scoping value passed to
// core operations.
func (c Claims) TenantContext() model.TenantContext {
	return model.TenantContext{
		CompanyID: c.CompanyID,
		UserID:    c.UserID,
		Role:      c.Role,
	}
}

// TokenService issues and verifies bearer tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService.
func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret}
}

// Issue signs claims valid for ttl from now.
func (s *TokenService) Issue(claims Claims, ttl time.Duration) (string, error) {
	claims.ExpiresAt = time.Now().Add(ttl).Unix()
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks the signature and expiry and returns the claims.
func (s *TokenService) Verify(token string) (Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	expected := s.sign(encoded)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Claims{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt > 0 && time.Now().Unix() >= claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func (s *TokenService) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
