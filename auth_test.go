package bluej

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func bearerToken(payload string) string {
	seg := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}
	return seg(`{"alg":"ES256K","typ":"JWT"}`) + "." + seg(payload) + "." + seg("sig")
}

func TestDevAuthValidatorIssuer(t *testing.T) {
	v := &DevAuthValidator{}

	r, _ := http.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton", nil)
	r.Header.Set("Authorization", "Bearer "+bearerToken(`{"iss":"did:plc:reader","aud":"did:web:feeds.example.com"}`))

	did, err := v.Validate(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, "did:plc:reader", did)
}

func TestDevAuthValidatorNoCredential(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)

	_, err := (&DevAuthValidator{}).Validate(context.Background(), r)
	require.ErrorIs(t, err, ErrAuthRequired)

	did, err := (&DevAuthValidator{FallbackDID: "did:plc:dev"}).Validate(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, "did:plc:dev", did)
}

func TestDevAuthValidatorRejectsGarbage(t *testing.T) {
	v := &DevAuthValidator{}

	for _, token := range []string{
		"notajwt",
		"a.b",
		"a.!!!.c",
		bearerToken(`{"sub":"no issuer here"}`),
		bearerToken(`not json`),
	} {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		_, err := v.Validate(context.Background(), r)
		require.ErrorIs(t, err, ErrAuthRequired, "token %q", token)
	}
}
