package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var ErrEmptyToken = errors.New("id token is required")

type GoogleIdentity struct {
	Subject string
	Email   string
}

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Verifier checks Google-issued ID tokens against an audience. With an empty
// audience it only checks that a token was presented.
type Verifier struct {
	audience string
	validate validateFunc
}

func NewVerifier(clientID string) Verifier {
	return Verifier{audience: strings.TrimSpace(clientID), validate: idtoken.Validate}
}

func (v Verifier) Enabled() bool {
	return v.audience != ""
}

func (v Verifier) Verify(ctx context.Context, idToken string) (GoogleIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return GoogleIdentity{}, ErrEmptyToken
	}
	if !v.Enabled() {
		return GoogleIdentity{}, nil
	}

	payload, err := v.validate(ctx, idToken, v.audience)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("validate id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	return GoogleIdentity{
		Subject: payload.Subject,
		Email:   strings.ToLower(strings.TrimSpace(email)),
	}, nil
}
