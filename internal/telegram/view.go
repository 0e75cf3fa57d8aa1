package telegram

import (
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

var escape = html.EscapeString

func questionText(sess *service.QuizSession) string {
	q, ok := sess.CurrentQuestion()
	if !ok {
		return "<i>(no question)</i>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Q%s</b>", escape(q.Number))
	if q.Index != "" {
		fmt.Fprintf(&sb, " (%s)", escape(q.Index))
	}
	fmt.Fprintf(&sb, "   %d / %d · answered %d\n\n", sess.Current+1, len(sess.Questions), sess.Answered())

	text := strings.TrimSpace(q.Text(sess.ShowSecondary))
	if text == "" {
		sb.WriteString("<i>(no question)</i>")
	} else {
		sb.WriteString(escape(text))
	}
	return sb.String()
}

func questionKeyboard(sess *service.QuizSession) *tgbotapi.InlineKeyboardMarkup {
	selected := ""
	if q, ok := sess.CurrentQuestion(); ok {
		selected = q.Response
	}

	answers := make([]tgbotapi.InlineKeyboardButton, 0, len(service.AnswerLetters))
	for _, letter := range service.AnswerLetters {
		label := letter
		if letter == selected {
			label = "✅ " + letter
		}
		answers = append(answers, tgbotapi.NewInlineKeyboardButtonData(label, "ans_"+letter))
	}

	// the toggle names the language it switches to
	lang := "KR"
	if sess.ShowSecondary {
		lang = "EN"
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(answers...),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", "nav_prev"),
			tgbotapi.NewInlineKeyboardButtonData(lang, "lang"),
			tgbotapi.NewInlineKeyboardButtonData("▶️", "nav_next"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Home", "home"),
			tgbotapi.NewInlineKeyboardButtonData("📄 Export", "export"),
		),
	)
	return &kb
}

func setupText(sess *service.QuizSession, last service.SheetRef) string {
	var sb strings.Builder
	if sess.Identity != nil {
		name := sess.Identity.Name
		if name == "" {
			name = sess.Identity.Email
		}
		fmt.Fprintf(&sb, "👤 Logged in as <b>%s</b> (%s)\n\n", escape(name), escape(sess.Identity.Email))
	}
	sb.WriteString("Send the spreadsheet id, optionally followed by the sheet name:\n<code>/setup &lt;sheet id&gt; [sheet name]</code>")
	if last.ID != "" {
		fmt.Fprintf(&sb, "\n\nLast used: <code>%s</code> / %s", escape(last.ID), escape(last.Name))
	}
	return sb.String()
}

func setupKeyboard(hasLast bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if hasLast {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start with last sheet", "start_quiz"),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🚪 Logout", "logout"),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func loginKeyboard(interactive bool) *tgbotapi.InlineKeyboardMarkup {
	if !interactive {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Login with Google", "login"),
		),
	)
	return &kb
}

// userMessage turns an error into text fit for the chat.
func userMessage(err error) string {
	var (
		decodeErr *service.DecodeError
		denied    *service.AccessDeniedError
		readErr   *service.RemoteReadError
	)
	switch {
	case errors.As(err, &decodeErr):
		return "❌ Could not read the login token. Please log in again."
	case errors.Is(err, service.ErrUnverifiedToken):
		return "❌ Could not verify that sign-in token. Use /login instead."
	case errors.As(err, &denied):
		return fmt.Sprintf("⛔ Access denied for %s.", denied.Email)
	case errors.As(err, &readErr):
		return "⚠️ Could not load questions: " + readErr.Message
	case errors.Is(err, service.ErrNotLoggedIn):
		return "Please log in first."
	case errors.Is(err, service.ErrNotInQuiz):
		return "No quiz in progress."
	case errors.Is(err, service.ErrNoSheetID):
		return "A spreadsheet id is required."
	case errors.Is(err, service.ErrSessionChanged):
		return "Loading stopped: you logged out or switched accounts."
	case errors.Is(err, service.ErrInvalidAnswer):
		return "Answer must be A, B, C or D."
	default:
		return "Something went wrong, please try again."
	}
}
