package service

import (
	"context"
	"errors"
	"sync"
)

type mapStore struct {
	mu      sync.Mutex
	values  map[string]string
	failSet bool
}

func newMapStore() *mapStore { return &mapStore{values: map[string]string{}} }

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	m.values[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mapStore) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

type writeCall struct {
	Sheet      SheetRef
	Credential string
	Row        int
	Letter     string
}

type fakeQuestionStore struct {
	mu        sync.Mutex
	questions []Question
	loadErr   error
	writeErr  error
	loads     int
	writes    []writeCall
}

func (f *fakeQuestionStore) LoadQuestions(_ context.Context, _ SheetRef, _ string) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]Question, len(f.questions))
	copy(out, f.questions)
	return out, nil
}

func (f *fakeQuestionStore) WriteResponse(_ context.Context, sheet SheetRef, credential string, row int, letter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{Sheet: sheet, Credential: credential, Row: row, Letter: letter})
	return f.writeErr
}

func (f *fakeQuestionStore) writeCalls() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.writes...)
}

type recordingRevoker struct {
	tokens []string
	err    error
}

func (r *recordingRevoker) Revoke(_ context.Context, token string) error {
	r.tokens = append(r.tokens, token)
	return r.err
}

func questionsWithResponses(responses ...string) []Question {
	qs := make([]Question, len(responses))
	for i, r := range responses {
		qs[i] = Question{RowNumber: DefaultLayout.FirstRow + i, Number: string(rune('1' + i)), Response: r}
	}
	return qs
}
