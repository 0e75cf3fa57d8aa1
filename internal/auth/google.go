// Package auth signs users in with Google using the authorization-code flow:
// the bot hands out a consent link, Google redirects the browser back to
// the bot's HTTP endpoint, and the code is exchanged for an identity
// assertion plus a bearer token scoped for spreadsheets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

const (
	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"
	defaultLoginTTL  = 10 * time.Minute
)

// DefaultScopes request the identity claims plus read/write access to sheets.
var DefaultScopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/spreadsheets",
}

var (
	_ service.Revoker = (*Google)(nil)
	_ http.Handler    = (*Google)(nil)
)

type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is the public address of ServeHTTP, registered with Google.
	RedirectURL string
	Scopes      []string
	// Endpoint and RevokeURL default to Google's.
	Endpoint   oauth2.Endpoint
	RevokeURL  string
	HTTPClient *http.Client
	// LoginTTL bounds how long a consent link stays usable.
	LoginTTL time.Duration
}

type Google struct {
	oauth      *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]pendingLogin
}

type pendingLogin struct {
	verifier string
	expires  time.Time
	done     func(service.Grant, error)
}

func NewGoogle(cfg Config) (*Google, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("google redirect url is required")
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = defaultRevokeURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	ttl := cfg.LoginTTL
	if ttl <= 0 {
		ttl = defaultLoginTTL
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		revokeURL:  revokeURL,
		httpClient: client,
		ttl:        ttl,
		now:        time.Now,
		pending:    make(map[string]pendingLogin),
	}, nil
}

// CallbackPath is the path part of the redirect URL, where ServeHTTP is mounted.
func (g *Google) CallbackPath() string {
	u, err := url.Parse(g.oauth.RedirectURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Begin registers a login and returns the consent link for it. done runs
// once, on the HTTP goroutine that receives the redirect. cancel forgets
// the login so a late redirect is rejected.
func (g *Google) Begin(done func(service.Grant, error)) (authURL string, cancel func()) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	g.mu.Lock()
	now := g.now()
	for s, p := range g.pending {
		if now.After(p.expires) {
			delete(g.pending, s)
		}
	}
	g.pending[state] = pendingLogin{verifier: verifier, expires: now.Add(g.ttl), done: done}
	g.mu.Unlock()

	authURL = g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, func() { g.take(state) }
}

func (g *Google) take(state string) (pendingLogin, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[state]
	if !ok {
		return pendingLogin{}, false
	}
	delete(g.pending, state)
	if g.now().After(p.expires) {
		return pendingLogin{}, false
	}
	return p, true
}

// ServeHTTP handles Google's redirect back to the bot.
func (g *Google) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, ok := g.take(q.Get("state"))
	if !ok {
		http.Error(w, "This login link has expired. Send /login in the chat again.", http.StatusBadRequest)
		return
	}

	if reason := q.Get("error"); reason != "" {
		p.done(service.Grant{}, fmt.Errorf("provider refused login: %s", reason))
		writePage(w, "Login cancelled. You can close this tab.")
		return
	}

	grant, err := g.exchange(r.Context(), q.Get("code"), p.verifier)
	p.done(grant, err)
	if err != nil {
		log.Printf("auth: exchange code: %v", err)
		writePage(w, "Login failed. Return to the chat and try again.")
		return
	}
	writePage(w, "You are signed in. Return to the chat.")
}

func writePage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text+"\n")
}

func (g *Google) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

func (g *Google) exchange(ctx context.Context, code, verifier string) (service.Grant, error) {
	if code == "" {
		return service.Grant{}, errors.New("redirect carried no code")
	}
	tok, err := g.oauth.Exchange(g.ctx(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return service.Grant{}, fmt.Errorf("exchange code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return service.Grant{}, errors.New("token response carried no id_token; is the openid scope configured?")
	}
	return service.Grant{IDToken: idToken, AccessToken: tok.AccessToken, Trusted: true}, nil
}

// Revoke invalidates token at the provider.
func (g *Google) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
