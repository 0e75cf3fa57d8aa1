package service

import "strings"

// Answer letters accepted for a question.
var AnswerLetters = []string{"A", "B", "C", "D"}

type Question struct {
	RowNumber     int
	Number        string
	Index         string
	TextPrimary   string
	TextSecondary string
	Response      string
}

// Text returns the question text in the requested language.
func (q Question) Text(secondary bool) string {
	if secondary {
		return q.TextSecondary
	}
	return q.TextPrimary
}

// SheetRef addresses one tab of one spreadsheet.
type SheetRef struct {
	ID   string
	Name string
}

type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type State int

const (
	StateLoggedOut State = iota
	StateAwaitingSetup
	StateInQuiz
)

func (s State) String() string {
	switch s {
	case StateAwaitingSetup:
		return "awaiting_setup"
	case StateInQuiz:
		return "in_quiz"
	default:
		return "logged_out"
	}
}

type QuizSession struct {
	// Namespace prefixes every local storage key written for this session.
	Namespace     string
	State         State
	Identity      *Identity
	Credential    string
	Sheet         SheetRef
	Questions     []Question
	Current       int
	ShowSecondary bool
}

func NewQuizSession(namespace string) *QuizSession {
	return &QuizSession{
		Namespace:     namespace,
		State:         StateLoggedOut,
		ShowSecondary: true,
	}
}

// CurrentQuestion returns the question under the cursor.
func (s *QuizSession) CurrentQuestion() (*Question, bool) {
	if s.Current < 0 || s.Current >= len(s.Questions) {
		return nil, false
	}
	return &s.Questions[s.Current], true
}

func (s *QuizSession) Next() bool {
	if s.Current >= len(s.Questions)-1 {
		return false
	}
	s.Current++
	return true
}

func (s *QuizSession) Previous() bool {
	if s.Current <= 0 {
		return false
	}
	s.Current--
	return true
}

func (s *QuizSession) ToggleLanguage() {
	s.ShowSecondary = !s.ShowSecondary
}

// Answered counts questions with a recorded response.
func (s *QuizSession) Answered() int {
	n := 0
	for _, q := range s.Questions {
		if q.Response != "" {
			n++
		}
	}
	return n
}

func (s *QuizSession) reset() {
	s.State = StateLoggedOut
	s.Identity = nil
	s.Credential = ""
	s.Sheet = SheetRef{}
	s.Questions = nil
	s.Current = 0
	s.ShowSecondary = true
}

// StartIndex picks where a freshly loaded quiz opens: the first unanswered
// question, or the first question when everything is answered.
func StartIndex(questions []Question) int {
	for i, q := range questions {
		if q.Response == "" {
			return i
		}
	}
	return 0
}

// NormalizeAnswer maps user input to one of AnswerLetters.
func NormalizeAnswer(letter string) (string, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	for _, l := range AnswerLetters {
		if l == letter {
			return l, true
		}
	}
	return "", false
}
