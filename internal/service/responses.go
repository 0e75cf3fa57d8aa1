package service

import (
	"context"
	"errors"
	"log"
)

// QuestionStore is the remote tabular store holding questions and answers.
// An empty credential means no bearer token is available.
type QuestionStore interface {
	LoadQuestions(ctx context.Context, sheet SheetRef, credential string) ([]Question, error)
	WriteResponse(ctx context.Context, sheet SheetRef, credential string, row int, letter string) error
}

// Tier names the persistence strategy used for one answer.
type Tier string

const (
	TierLocal  Tier = "local"
	TierRemote Tier = "remote"
)

// Observer is told about loads, saves and logins. Implementations must be
// safe for concurrent use: saves are reported from background writes.
type Observer interface {
	QuestionsLoaded(count int, err error)
	ResponseSaved(tier Tier, err error)
	LoginFinished(err error)
}

type nopObserver struct{}

func (nopObserver) QuestionsLoaded(int, error) {}
func (nopObserver) ResponseSaved(Tier, error)  {}
func (nopObserver) LoginFinished(error)        {}

// ResponseTarget is the slice of a session a write needs. It is copied out of
// the session so a background write never touches session state.
type ResponseTarget struct {
	Sheet      SheetRef
	Credential string
	Local      LocalStore
}

type SaveResult struct {
	Tier      Tier
	LocalErr  error
	RemoteErr error
}

// ResponseWriter persists answers: always to local storage, and to the remote
// store when a credential is available.
type ResponseWriter struct {
	remote   QuestionStore
	observer Observer
}

func NewResponseWriter(remote QuestionStore, observer Observer) *ResponseWriter {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ResponseWriter{remote: remote, observer: observer}
}

// Save never fails from the caller's point of view; errors are reported in
// the result and logged.
func (w *ResponseWriter) Save(ctx context.Context, target ResponseTarget, row int, letter string) SaveResult {
	var res SaveResult

	key := ResponseKey(target.Sheet.ID, row)
	if err := target.Local.Set(ctx, key, letter); err != nil {
		log.Printf("storage: save %s: %v", key, err)
		res.LocalErr = err
	}

	if target.Credential == "" || w.remote == nil {
		res.Tier = TierLocal
		log.Printf("responses: stored locally row=%d answer=%s", row, letter)
		w.observer.ResponseSaved(res.Tier, res.LocalErr)
		return res
	}

	res.Tier = TierRemote
	if err := w.remote.WriteResponse(ctx, target.Sheet, target.Credential, row, letter); err != nil {
		res.RemoteErr = &RemoteWriteError{Row: row, Err: err}
		log.Printf("responses: %v (kept locally)", res.RemoteErr)
	} else {
		log.Printf("responses: saved to sheet row=%d answer=%s", row, letter)
	}
	w.observer.ResponseSaved(res.Tier, errors.Join(res.LocalErr, res.RemoteErr))
	return res
}
