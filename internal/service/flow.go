package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

const DefaultSheetName = "Sheet1"

// Revoker invalidates a bearer credential at logout.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// AssertionVerifier checks the signature, issuer and audience of an identity
// assertion.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, token string) error
}

// Grant is what a completed login hands over: the identity assertion and,
// when the provider issued one, a bearer credential for the question store.
// Trusted is set only by logins that received IDToken directly from the
// provider's token endpoint; any other assertion is verified before use.
type Grant struct {
	IDToken     string
	AccessToken string
	Trusted     bool
}

type QuizConfig struct {
	AllowList        *AllowList
	Store            QuestionStore
	Local            LocalStore
	Revoker          Revoker
	Verifier         AssertionVerifier
	Observer         Observer
	DefaultSheetName string
}

// Quiz drives a QuizSession through login, setup, answering and logout.
// It holds no per-user state of its own.
type Quiz struct {
	allow            *AllowList
	store            QuestionStore
	local            LocalStore
	revoker          Revoker
	verifier         AssertionVerifier
	observer         Observer
	writer           *ResponseWriter
	defaultSheetName string
}

func NewQuiz(cfg QuizConfig) *Quiz {
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	name := cfg.DefaultSheetName
	if name == "" {
		name = DefaultSheetName
	}
	return &Quiz{
		allow:            cfg.AllowList,
		store:            cfg.Store,
		local:            cfg.Local,
		revoker:          cfg.Revoker,
		verifier:         cfg.Verifier,
		observer:         observer,
		writer:           NewResponseWriter(cfg.Store, observer),
		defaultSheetName: name,
	}
}

func (q *Quiz) sessionStore(sess *QuizSession) LocalStore {
	return Scoped(q.local, sess.Namespace)
}

// Restore brings back a cached identity that is still allow-listed.
func (q *Quiz) Restore(ctx context.Context, sess *QuizSession) bool {
	if sess.State != StateLoggedOut {
		return sess.Identity != nil
	}
	id, ok := loadIdentity(ctx, q.sessionStore(sess))
	if !ok || !q.allow.Allowed(id.Email) {
		return false
	}
	sess.Identity = &id
	sess.State = StateAwaitingSetup
	return true
}

// Login resolves the identity in grant and opens a fresh session for it.
// On any error the session is left untouched.
func (q *Quiz) Login(ctx context.Context, sess *QuizSession, grant Grant) (Identity, error) {
	id, err := DecodeIdentityToken(grant.IDToken)
	if err == nil && !grant.Trusted {
		err = q.verifyAssertion(ctx, grant.IDToken)
	}
	if err != nil {
		q.observer.LoginFinished(err)
		return Identity{}, err
	}
	if !q.allow.Allowed(id.Email) {
		err := &AccessDeniedError{Email: id.Email}
		q.observer.LoginFinished(err)
		return id, err
	}

	sess.reset()
	sess.Identity = &id
	sess.Credential = grant.AccessToken
	sess.State = StateAwaitingSetup
	if err := saveIdentity(ctx, q.sessionStore(sess), id); err != nil {
		log.Printf("storage: cache identity: %v", err)
	}
	q.observer.LoginFinished(nil)
	return id, nil
}

func (q *Quiz) verifyAssertion(ctx context.Context, token string) error {
	if q.verifier == nil {
		return fmt.Errorf("%w: no verifier configured", ErrUnverifiedToken)
	}
	if err := q.verifier.VerifyAssertion(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrUnverifiedToken, err)
	}
	return nil
}

// LastSheet returns the sheet used most recently in this namespace.
func (q *Quiz) LastSheet(ctx context.Context, sess *QuizSession) SheetRef {
	store := q.sessionStore(sess)
	ref := SheetRef{
		ID:   lookup(ctx, store, KeySheetID),
		Name: lookup(ctx, store, KeySheetName),
	}
	if ref.Name == "" {
		ref.Name = q.defaultSheetName
	}
	return ref
}

// LoadRequest is a validated question load detached from its session, so
// the load can run on a different goroutine than the one owning the session.
type LoadRequest struct {
	Sheet      SheetRef
	email      string
	credential string
	local      LocalStore
}

// PrepareLoad validates sheet for sess and remembers it as the last sheet.
func (q *Quiz) PrepareLoad(ctx context.Context, sess *QuizSession, sheet SheetRef) (LoadRequest, error) {
	if sess.Identity == nil || !q.allow.Allowed(sess.Identity.Email) {
		return LoadRequest{}, ErrNotLoggedIn
	}
	sheet.ID = strings.TrimSpace(sheet.ID)
	sheet.Name = strings.TrimSpace(sheet.Name)
	if sheet.ID == "" {
		return LoadRequest{}, ErrNoSheetID
	}
	if sheet.Name == "" {
		sheet.Name = q.defaultSheetName
	}

	store := q.sessionStore(sess)
	if err := store.Set(ctx, KeySheetID, sheet.ID); err != nil {
		log.Printf("storage: save sheet id: %v", err)
	}
	if err := store.Set(ctx, KeySheetName, sheet.Name); err != nil {
		log.Printf("storage: save sheet name: %v", err)
	}
	return LoadRequest{
		Sheet:      sheet,
		email:      sess.Identity.Email,
		credential: sess.Credential,
		local:      store,
	}, nil
}

// Load fetches the questions for req and fills answers recorded only locally.
// Every failure is a *RemoteReadError.
func (q *Quiz) Load(ctx context.Context, req LoadRequest) ([]Question, error) {
	questions, err := q.store.LoadQuestions(ctx, req.Sheet, req.credential)
	if err == nil && len(questions) == 0 {
		err = &RemoteReadError{Message: ErrEmptySheet.Error(), Err: ErrEmptySheet}
	}
	if err != nil {
		var rre *RemoteReadError
		if !errors.As(err, &rre) {
			err = &RemoteReadError{Message: "failed to load questions", Err: err}
		}
		q.observer.QuestionsLoaded(0, err)
		return nil, err
	}

	q.recoverResponses(ctx, req.local, req.Sheet.ID, questions)
	q.observer.QuestionsLoaded(len(questions), nil)
	log.Printf("quiz: loaded %d questions from %s", len(questions), req.Sheet.Name)
	return questions, nil
}

// Enter opens the quiz at StartIndex. It refuses with ErrSessionChanged when
// the session logged out or switched identity since PrepareLoad.
func (q *Quiz) Enter(sess *QuizSession, req LoadRequest, questions []Question) error {
	if sess.State == StateLoggedOut || sess.Identity == nil ||
		sess.Identity.Email != req.email || sess.Credential != req.credential {
		return ErrSessionChanged
	}
	sess.Sheet = req.Sheet
	sess.Questions = questions
	sess.Current = StartIndex(questions)
	sess.State = StateInQuiz
	return nil
}

// Start loads the questions of sheet and enters the quiz at StartIndex.
// The session only changes when the load succeeds.
func (q *Quiz) Start(ctx context.Context, sess *QuizSession, sheet SheetRef) error {
	req, err := q.PrepareLoad(ctx, sess, sheet)
	if err != nil {
		return err
	}
	questions, err := q.Load(ctx, req)
	if err != nil {
		return err
	}
	return q.Enter(sess, req, questions)
}

// recoverResponses fills answers that only ever reached local storage.
func (q *Quiz) recoverResponses(ctx context.Context, store LocalStore, sheetID string, questions []Question) {
	for i := range questions {
		if questions[i].Response != "" {
			continue
		}
		if letter, ok := NormalizeAnswer(lookup(ctx, store, ResponseKey(sheetID, questions[i].RowNumber))); ok {
			questions[i].Response = letter
		}
	}
}

// SelectAnswer records letter on the current question and persists it in the
// background. The returned channel yields the save result once; callers are
// free to ignore it.
func (q *Quiz) SelectAnswer(ctx context.Context, sess *QuizSession, letter string) (<-chan SaveResult, error) {
	if sess.State != StateInQuiz {
		return nil, ErrNotInQuiz
	}
	answer, ok := NormalizeAnswer(letter)
	if !ok {
		return nil, ErrInvalidAnswer
	}
	current, ok := sess.CurrentQuestion()
	if !ok {
		return nil, ErrNotInQuiz
	}
	current.Response = answer

	target := ResponseTarget{
		Sheet:      sess.Sheet,
		Credential: sess.Credential,
		Local:      q.sessionStore(sess),
	}
	row := current.RowNumber
	done := make(chan SaveResult, 1)
	go func() {
		defer close(done)
		done <- q.writer.Save(context.WithoutCancel(ctx), target, row, answer)
	}()
	return done, nil
}

// Home leaves the quiz and returns to setup.
func (q *Quiz) Home(sess *QuizSession) {
	if sess.State != StateInQuiz {
		return
	}
	sess.Questions = nil
	sess.Current = 0
	sess.State = StateAwaitingSetup
}

// Logout revokes the credential when possible, forgets the cached identity
// and resets the session.
func (q *Quiz) Logout(ctx context.Context, sess *QuizSession) {
	if sess.Credential != "" && q.revoker != nil {
		if err := q.revoker.Revoke(ctx, sess.Credential); err != nil {
			log.Printf("auth: revoke token: %v", err)
		}
	}
	if err := q.sessionStore(sess).Delete(ctx, KeyUser); err != nil {
		log.Printf("storage: forget identity: %v", err)
	}
	sess.reset()
}
