package bluej

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthRequired marks a request with a missing or unusable credential.
var ErrAuthRequired = errors.New("authentication required")

// AuthValidator resolves an inbound request's credential to a requester
// DID, failing closed.
type AuthValidator interface {
	Validate(ctx context.Context, r *http.Request) (string, error)
}

// DevAuthValidator extracts the issuer DID from the bearer service token
// without verifying its signature, and optionally maps credential-less
// requests to a fixed development identity. A pre-production shortcut:
// deployments facing real traffic should inject a verifying implementation.
type DevAuthValidator struct {
	// FallbackDID, when set, is returned for requests with no bearer token.
	// When empty, such requests fail closed.
	FallbackDID string
}

func (v *DevAuthValidator) Validate(ctx context.Context, r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		if v.FallbackDID != "" {
			return v.FallbackDID, nil
		}
		return "", ErrAuthRequired
	}

	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	iss, err := jwtIssuer(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	return iss, nil
}

func jwtIssuer(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("not a jwt")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid jwt payload: %v", err)
	}
	var claims struct {
		Iss string `json:"iss"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("invalid jwt claims: %v", err)
	}
	if claims.Iss == "" {
		return "", fmt.Errorf("jwt missing iss")
	}
	return claims.Iss, nil
}
