package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DecodeIdentityToken reads the email and name claims from the payload
// segment of an identity assertion. The header and signature segments are
// not inspected; trust is established separately by Quiz.Login.
func DecodeIdentityToken(token string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return Identity{}, &DecodeError{Err: fmt.Errorf("expected 3 segments, got %d", len(parts))}
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Identity{}, &DecodeError{Err: fmt.Errorf("payload: %w", err)}
	}
	var id Identity
	if err := json.Unmarshal(payload, &id); err != nil {
		return Identity{}, &DecodeError{Err: fmt.Errorf("payload: %w", err)}
	}
	if id.Email == "" {
		return Identity{}, &DecodeError{Err: errors.New("payload has no email claim")}
	}
	return id, nil
}

// AllowList is the fixed set of emails permitted to use the quiz.
type AllowList struct {
	emails map[string]struct{}
}

func NewAllowList(emails []string) *AllowList {
	a := &AllowList{emails: make(map[string]struct{}, len(emails))}
	for _, email := range emails {
		key := canonicalEmail(email)
		if key == "" {
			continue
		}
		a.emails[key] = struct{}{}
	}
	return a
}

// Allowed reports a case-insensitive exact match.
func (a *AllowList) Allowed(email string) bool {
	if a == nil {
		return false
	}
	key := canonicalEmail(email)
	if key == "" {
		return false
	}
	_, ok := a.emails[key]
	return ok
}

func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.emails)
}

func canonicalEmail(email string) string {
	email = norm.NFKC.String(strings.TrimSpace(email))
	return cases.Fold().String(email)
}
