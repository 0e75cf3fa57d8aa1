package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

type fakeProvider struct {
	mu           sync.Mutex
	exchanges    []url.Values
	revoked      []string
	revokeStatus int
	idToken      string
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/token":
		p.exchanges = append(p.exchanges, r.PostForm)
		if r.PostForm.Get("code") != "code-123" || r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp := map[string]any{
			"access_token": "access-xyz",
			"token_type":   "Bearer",
			"expires_in":   3599,
		}
		if p.idToken != "" {
			resp["id_token"] = p.idToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "/revoke":
		p.revoked = append(p.revoked, r.Form.Get("token"))
		status := p.revokeStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func (p *fakeProvider) counts() (exchanges []url.Values, revoked []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.exchanges...), append([]string(nil), p.revoked...)
}

func newTestGoogle(t *testing.T, provider *fakeProvider) *Google {
	t.Helper()
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)
	g, err := NewGoogle(Config{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "https://quiz.example.com/oauth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/o/oauth2/auth",
			TokenURL: srv.URL + "/token",
		},
		RevokeURL:  srv.URL + "/revoke",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}
	return g
}

type loginResult struct {
	grant service.Grant
	err   error
	calls int
}

func (r *loginResult) done(grant service.Grant, err error) {
	r.grant, r.err = grant, err
	r.calls++
}

// redirect simulates the browser coming back from the consent screen.
func redirect(g *Google, query url.Values) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?"+query.Encode(), nil))
	return rec
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	return u.Query().Get("state")
}

func TestAuthCodeLoginYieldsTrustedGrant(t *testing.T) {
	provider := &fakeProvider{idToken: "header.payload.sig"}
	g := newTestGoogle(t, provider)
	result := &loginResult{}

	authURL, _ := g.Begin(result.done)
	u, _ := url.Parse(authURL)
	q := u.Query()
	if q.Get("redirect_uri") != "https://quiz.example.com/oauth/callback" || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("unexpected consent link %s", authURL)
	}
	if !strings.Contains(q.Get("scope"), "https://www.googleapis.com/auth/spreadsheets") {
		t.Fatalf("consent link should ask for spreadsheets, got %q", q.Get("scope"))
	}

	rec := redirect(g, url.Values{"state": {q.Get("state")}, "code": {"code-123"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "signed in") {
		t.Fatalf("unexpected callback response %d %q", rec.Code, rec.Body.String())
	}
	if result.calls != 1 || result.err != nil {
		t.Fatalf("expected one successful completion, got %+v", result)
	}
	want := service.Grant{IDToken: "header.payload.sig", AccessToken: "access-xyz", Trusted: true}
	if result.grant != want {
		t.Fatalf("unexpected grant %+v", result.grant)
	}
	if exchanges, _ := provider.counts(); len(exchanges) != 1 || exchanges[0].Get("code_verifier") == "" {
		t.Fatalf("code exchange should carry the PKCE verifier: %v", exchanges)
	}

	// the state is single use
	if rec := redirect(g, url.Values{"state": {q.Get("state")}, "code": {"code-123"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("replayed state should be rejected, got %d", rec.Code)
	}
	if result.calls != 1 {
		t.Fatalf("done must run once, ran %d times", result.calls)
	}
}

func TestCallbackRejectsUnknownCancelledAndExpired(t *testing.T) {
	g := newTestGoogle(t, &fakeProvider{idToken: "h.p.s"})

	if rec := redirect(g, url.Values{"state": {"never-issued"}, "code": {"code-123"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown state should be rejected, got %d", rec.Code)
	}

	cancelled := &loginResult{}
	authURL, cancel := g.Begin(cancelled.done)
	cancel()
	if rec := redirect(g, url.Values{"state": {stateOf(t, authURL)}, "code": {"code-123"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("cancelled login should be rejected, got %d", rec.Code)
	}

	expired := &loginResult{}
	authURL, _ = g.Begin(expired.done)
	g.now = func() time.Time { return time.Now().Add(time.Hour) }
	if rec := redirect(g, url.Values{"state": {stateOf(t, authURL)}, "code": {"code-123"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expired login should be rejected, got %d", rec.Code)
	}
	if cancelled.calls != 0 || expired.calls != 0 {
		t.Fatalf("rejected redirects must not complete a login")
	}
}

func TestCallbackReportsFailures(t *testing.T) {
	g := newTestGoogle(t, &fakeProvider{})

	denied := &loginResult{}
	authURL, _ := g.Begin(denied.done)
	redirect(g, url.Values{"state": {stateOf(t, authURL)}, "error": {"access_denied"}})
	if denied.calls != 1 || denied.err == nil || !strings.Contains(denied.err.Error(), "access_denied") {
		t.Fatalf("expected provider refusal, got %+v", denied)
	}

	noIDToken := &loginResult{}
	authURL, _ = g.Begin(noIDToken.done)
	redirect(g, url.Values{"state": {stateOf(t, authURL)}, "code": {"code-123"}})
	if noIDToken.err == nil || !strings.Contains(noIDToken.err.Error(), "id_token") {
		t.Fatalf("expected missing id_token error, got %v", noIDToken.err)
	}

	badCode := &loginResult{}
	authURL, _ = g.Begin(badCode.done)
	redirect(g, url.Values{"state": {stateOf(t, authURL)}, "code": {"wrong"}})
	if badCode.err == nil {
		t.Fatalf("expected exchange failure")
	}
}

func TestCallbackPath(t *testing.T) {
	g := newTestGoogle(t, &fakeProvider{})
	if got := g.CallbackPath(); got != "/oauth/callback" {
		t.Fatalf("unexpected callback path %q", got)
	}
}

func TestRevoke(t *testing.T) {
	provider := &fakeProvider{}
	g := newTestGoogle(t, provider)
	if err := g.Revoke(context.Background(), "access-xyz"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, revoked := provider.counts(); len(revoked) != 1 || revoked[0] != "access-xyz" {
		t.Fatalf("unexpected revocations %v", revoked)
	}

	provider.mu.Lock()
	provider.revokeStatus = http.StatusBadRequest
	provider.mu.Unlock()
	if err := g.Revoke(context.Background(), "expired"); err == nil {
		t.Fatalf("expected revoke failure to be reported")
	}
}

func TestNewGoogleRequiresClientAndRedirect(t *testing.T) {
	if _, err := NewGoogle(Config{RedirectURL: "https://x/cb"}); err == nil {
		t.Fatalf("expected error without a client id")
	}
	if _, err := NewGoogle(Config{ClientID: "id"}); err == nil {
		t.Fatalf("expected error without a redirect url")
	}
}
