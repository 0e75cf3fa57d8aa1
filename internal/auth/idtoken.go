package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

var _ service.AssertionVerifier = (*IDTokenVerifier)(nil)

// IDTokenVerifier checks Google-signed identity assertions issued for one
// OAuth client.
type IDTokenVerifier struct {
	validator *idtoken.Validator
	audience  string
}

// NewIDTokenVerifier builds a verifier for assertions whose audience is
// clientID. client fetches Google's signing keys; nil uses a default client.
func NewIDTokenVerifier(ctx context.Context, clientID string, client *http.Client) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("id token validator: %w", err)
	}
	return &IDTokenVerifier{validator: v, audience: clientID}, nil
}

func (v *IDTokenVerifier) VerifyAssertion(ctx context.Context, token string) error {
	payload, err := v.validator.Validate(ctx, token, v.audience)
	if err != nil {
		return err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return fmt.Errorf("unexpected issuer %q", payload.Issuer)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return errors.New("email is not verified")
	}
	return nil
}
