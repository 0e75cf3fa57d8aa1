package service

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestDecodeIdentityToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"email": "user@example.com",
		"name":  "홍길동",
		"aud":   "client-id",
		"exp":   2000000000,
	})
	id, err := DecodeIdentityToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Email != "user@example.com" || id.Name != "홍길동" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestDecodeIdentityTokenIgnoresHeader(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"email":"user@example.com","name":"U","exp":"soon"}`))
	headers := map[string]string{
		"no alg":      base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`)),
		"unknown alg": base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"XX512"}`)),
		"not json":    "xx",
		"empty":       "",
	}
	for name, header := range headers {
		id, err := DecodeIdentityToken(header + "." + payload + ".sig")
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if id.Email != "user@example.com" || id.Name != "U" {
			t.Fatalf("%s: unexpected identity %+v", name, id)
		}
	}
}

func TestDecodeIdentityTokenPaddedPayload(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"email":"a@example.com"}`))
	if !strings.HasSuffix(payload, "=") {
		t.Fatalf("fixture should carry padding, got %q", payload)
	}
	id, err := DecodeIdentityToken("h." + payload + ".s")
	if err != nil || id.Email != "a@example.com" {
		t.Fatalf("expected padded payload to decode, got %+v %v", id, err)
	}
}

func TestDecodeIdentityTokenMalformed(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	noEmail := base64.RawURLEncoding.EncodeToString([]byte(`{"name":"x"}`))

	tokens := map[string]string{
		"empty":            "",
		"one segment":      "abc",
		"two segments":     header + "." + notJSON,
		"four segments":    header + ".a.b.c",
		"bad base64":       header + ".!!!.sig",
		"payload not json": header + "." + notJSON + ".sig",
		"missing email":    header + "." + noEmail + ".sig",
	}
	for name, token := range tokens {
		_, err := DecodeIdentityToken(token)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: expected DecodeError, got %v", name, err)
		}
	}
}

func TestAllowListCaseInsensitive(t *testing.T) {
	allow := NewAllowList([]string{"user@example.com", " Admin@Example.org ", ""})
	if allow.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", allow.Len())
	}
	for _, email := range []string{"User@Example.com", "user@example.com", "admin@example.ORG"} {
		if !allow.Allowed(email) {
			t.Fatalf("expected %s to be allowed", email)
		}
	}
	for _, email := range []string{"", "other@example.com", "example.com", "user@example.co", "xuser@example.com"} {
		if allow.Allowed(email) {
			t.Fatalf("expected %s to be denied", email)
		}
	}
}

func TestNilAllowListDeniesEverything(t *testing.T) {
	var allow *AllowList
	if allow.Allowed("user@example.com") {
		t.Fatalf("nil allow-list must deny")
	}
}
