package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned once a grant is past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadGrant is what a download link authorises: one object of one
// material, until ExpiresAt.
type DownloadGrant struct {
	MaterialID string    `json:"mid"`
	Bucket     string    `json:"bkt"`
	Key        string    `json:"key"`
	ExpiresAt  time.Time `json:"-"`
}

type grantClaims struct {
	DownloadGrant
	Exp int64 `json:"exp"`
}

// SignedURLSigner issues and checks HMAC-signed material download tokens.
// A token is base64url(json grant) "." base64url(hmac-sha256).
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer; ttl <= 0 defaults to one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign fills ExpiresAt and returns the token for grant.
func (s *SignedURLSigner) Sign(grant DownloadGrant) (string, DownloadGrant, error) {
	if grant.MaterialID == "" || grant.Bucket == "" || grant.Key == "" {
		return "", DownloadGrant{}, fmt.Errorf("material id, bucket and key required")
	}
	if len(s.secret) == 0 {
		return "", DownloadGrant{}, fmt.Errorf("signing secret missing")
	}
	grant.ExpiresAt = s.now().Add(s.ttl).Truncate(time.Second)
	body, err := json.Marshal(grantClaims{DownloadGrant: grant, Exp: grant.ExpiresAt.Unix()})
	if err != nil {
		return "", DownloadGrant{}, fmt.Errorf("encode grant: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + s.mac(payload), grant, nil
}

// Verify checks the signature and expiry and returns the grant. bucket must
// match the one the token was issued for.
func (s *SignedURLSigner) Verify(token, bucket string) (DownloadGrant, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" {
		return DownloadGrant{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.mac(payload)), []byte(signature)) {
		return DownloadGrant{}, ErrInvalidToken
	}
	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return DownloadGrant{}, ErrInvalidToken
	}
	var claims grantClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return DownloadGrant{}, ErrInvalidToken
	}
	grant := claims.DownloadGrant
	grant.ExpiresAt = time.Unix(claims.Exp, 0)
	if grant.Bucket != bucket {
		return DownloadGrant{}, ErrInvalidToken
	}
	if s.now().After(grant.ExpiresAt) {
		return DownloadGrant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(payload string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
