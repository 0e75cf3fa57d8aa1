package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

func TestObserverCounts(t *testing.T) {
	m := New()

	m.QuestionsLoaded(12, nil)
	m.QuestionsLoaded(0, &service.RemoteReadError{Message: "boom"})
	m.ResponseSaved(service.TierLocal, nil)
	m.ResponseSaved(service.TierRemote, nil)
	m.ResponseSaved(service.TierRemote, errors.New("403"))
	m.LoginFinished(nil)
	m.LoginFinished(&service.AccessDeniedError{Email: "x@example.com"})
	m.LoginFinished(&service.DecodeError{Err: errors.New("bad")})
	m.LoginFinished(fmt.Errorf("%w: signature mismatch", service.ErrUnverifiedToken))

	if got := testutil.ToFloat64(m.loads.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok load, got %v", got)
	}
	if got := testutil.ToFloat64(m.loads.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed load, got %v", got)
	}
	if got := testutil.ToFloat64(m.questions); got != 12 {
		t.Fatalf("expected gauge 12, got %v", got)
	}
	if got := testutil.ToFloat64(m.saves.WithLabelValues("remote", "error")); got != 1 {
		t.Fatalf("expected 1 failed remote save, got %v", got)
	}
	if got := testutil.ToFloat64(m.saves.WithLabelValues("local", "ok")); got != 1 {
		t.Fatalf("expected 1 local save, got %v", got)
	}
	for _, outcome := range []string{"ok", "denied", "invalid_token", "unverified"} {
		if got := testutil.ToFloat64(m.logins.WithLabelValues(outcome)); got != 1 {
			t.Fatalf("expected 1 %s login, got %v", outcome, got)
		}
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ResponseSaved(service.TierLocal, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `sheetquiz_response_saves_total{outcome="ok",tier="local"} 1`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
