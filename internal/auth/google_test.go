package auth

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/idtoken"
)

func TestVerifierWithoutAudienceAcceptsAnyToken(t *testing.T) {
	v := NewVerifier("")
	if v.Enabled() {
		t.Fatal("expected verification to be disabled")
	}
	if _, err := v.Verify(context.Background(), "opaque"); err != nil {
		t.Fatalf("expected token to be accepted, got %v", err)
	}
	if _, err := v.Verify(context.Background(), "  "); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected empty token error, got %v", err)
	}
}

func TestVerifierValidatesAgainstAudience(t *testing.T) {
	var gotAudience string
	v := Verifier{audience: "client-123", validate: func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		gotAudience = audience
		if token != "good" {
			return nil, errors.New("bad signature")
		}
		return &idtoken.Payload{Subject: "sub-1", Claims: map[string]interface{}{"email": "Dev@Example.com"}}, nil
	}}

	identity, err := v.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotAudience != "client-123" || identity.Subject != "sub-1" || identity.Email != "dev@example.com" {
		t.Fatalf("unexpected identity %+v (audience %q)", identity, gotAudience)
	}

	if _, err := v.Verify(context.Background(), "bad"); err == nil {
		t.Fatal("expected invalid token to be rejected")
	}
}
