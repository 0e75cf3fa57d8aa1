package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PoluyanbIch/SheetQuizBot/internal/export"
	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

// sender is the part of *tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Authenticator hands out consent links. done runs on another goroutine once
// the provider redirects back; cancel abandons the login.
type Authenticator interface {
	Begin(done func(service.Grant, error)) (authURL string, cancel func())
}

type Options struct {
	// Auth enables /login. Without it users sign in with /signin <id-token>.
	Auth Authenticator
	// Archive, when set, receives a copy of every /export.
	Archive export.Archive
	Debug   bool
}

// Bot serves one quiz session per chat. All session state is touched from
// the Start loop only; background work reports back through events.
type Bot struct {
	api          sender
	updates      updateSource
	quiz         *service.Quiz
	auth         Authenticator
	archive      export.Archive
	quizSessions map[int64]*service.QuizSession
	logins       map[int64]pendingLogin
	loginSeq     int
	loading      map[int64]bool
	events       chan func(ctx context.Context)
	quit         chan struct{}
	now          func() time.Time
}

// pendingLogin is the chat's outstanding /login. seq tells a stale
// redirect from the current one.
type pendingLogin struct {
	seq    int
	cancel func()
}

func NewBot(token string, quiz *service.Quiz, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	log.Printf("telegram: authorised on account %s", api.Self.UserName)

	b := newBot(api, quiz, opts)
	b.updates = api
	return b, nil
}

func newBot(api sender, quiz *service.Quiz, opts Options) *Bot {
	return &Bot{
		api:          api,
		quiz:         quiz,
		auth:         opts.Auth,
		archive:      opts.Archive,
		quizSessions: make(map[int64]*service.QuizSession),
		logins:       make(map[int64]pendingLogin),
		loading:      make(map[int64]bool),
		events:       make(chan func(ctx context.Context), 16),
		quit:         make(chan struct{}),
		now:          time.Now,
	}
}

// Start processes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.updates.GetUpdatesChan(u)
	defer b.updates.StopReceivingUpdates()
	defer close(b.quit)

	for {
		select {
		case <-ctx.Done():
			for chatID := range b.logins {
				b.cancelLogin(chatID)
			}
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		case event := <-b.events:
			event(ctx)
		}
	}
}

// post hands ev to the Start loop. It gives up once the loop has exited.
func (b *Bot) post(ev func(ctx context.Context)) {
	select {
	case b.events <- ev:
	case <-b.quit:
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil && update.Message.Chat != nil {
		b.handleMessage(ctx, update.Message)
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// session returns the chat's session, restoring a cached login on first use.
func (b *Bot) session(ctx context.Context, chatID int64) *service.QuizSession {
	sess, ok := b.quizSessions[chatID]
	if !ok {
		sess = service.NewQuizSession(fmt.Sprintf("chat:%d:", chatID))
		if b.quiz.Restore(ctx, sess) {
			log.Printf("telegram: chat %d restored login for %s", chatID, sess.Identity.Email)
		}
		b.quizSessions[chatID] = sess
	}
	return sess
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	sess := b.session(ctx, chatID)

	if !msg.IsCommand() {
		b.handleText(ctx, chatID, sess, strings.TrimSpace(msg.Text))
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.sendMainMenu(ctx, chatID, sess)
	case "login":
		b.beginLogin(chatID)
	case "signin":
		b.deleteMessage(chatID, msg.MessageID)
		b.signIn(ctx, chatID, sess, args)
	case "setup":
		b.setup(ctx, chatID, sess, args)
	case "quiz":
		b.startQuiz(ctx, chatID, sess, b.quiz.LastSheet(ctx, sess))
	case "home":
		b.goHome(ctx, chatID, 0, sess)
	case "logout":
		b.logout(ctx, chatID, sess)
	case "export":
		b.exportQuiz(ctx, chatID, sess)
	default:
		b.sendMessage(chatID, "Unknown command. Try /help.")
	}
}

// handleText maps plain messages: shortcuts in a quiz, a sheet id in setup.
func (b *Bot) handleText(ctx context.Context, chatID int64, sess *service.QuizSession, text string) {
	switch sess.State {
	case service.StateInQuiz:
		if !b.applyShortcut(ctx, sess, text) {
			b.sendMessage(chatID, "Answer with a-d or 1-4, e switches language, < and > move.")
			return
		}
		b.showQuestion(chatID, 0, sess)
	case service.StateAwaitingSetup:
		b.setup(ctx, chatID, sess, text)
	default:
		b.sendMainMenu(ctx, chatID, sess)
	}
}

var shortcutAnswers = map[string]string{"1": "A", "2": "B", "3": "C", "4": "D"}

func (b *Bot) applyShortcut(ctx context.Context, sess *service.QuizSession, text string) bool {
	key := strings.ToLower(text)
	switch key {
	case "<":
		sess.Previous()
		return true
	case ">":
		sess.Next()
		return true
	case "e":
		sess.ToggleLanguage()
		return true
	}
	letter, ok := shortcutAnswers[key]
	if !ok {
		letter = key
	}
	return b.selectAnswer(ctx, sess, letter) == nil
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data
	sess := b.session(ctx, chatID)

	notice := ""
	switch {
	case strings.HasPrefix(data, "ans_"):
		if err := b.selectAnswer(ctx, sess, strings.TrimPrefix(data, "ans_")); err != nil {
			notice = userMessage(err)
			break
		}
		b.showQuestion(chatID, messageID, sess)
	case data == "nav_prev":
		if !b.requireQuiz(sess, &notice) {
			break
		}
		if !sess.Previous() {
			notice = "This is the first question"
			break
		}
		b.showQuestion(chatID, messageID, sess)
	case data == "nav_next":
		if !b.requireQuiz(sess, &notice) {
			break
		}
		if !sess.Next() {
			notice = "This is the last question"
			break
		}
		b.showQuestion(chatID, messageID, sess)
	case data == "lang":
		if !b.requireQuiz(sess, &notice) {
			break
		}
		sess.ToggleLanguage()
		b.showQuestion(chatID, messageID, sess)
	case data == "home":
		b.goHome(ctx, chatID, messageID, sess)
	case data == "start_quiz":
		b.startQuiz(ctx, chatID, sess, b.quiz.LastSheet(ctx, sess))
	case data == "export":
		b.exportQuiz(ctx, chatID, sess)
	case data == "login":
		b.beginLogin(chatID)
	case data == "logout":
		b.logout(ctx, chatID, sess)
	default:
		notice = "Unknown action"
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, notice)); err != nil {
		log.Printf("telegram: answer callback: %v", err)
	}
}

func (b *Bot) requireQuiz(sess *service.QuizSession, notice *string) bool {
	if sess.State != service.StateInQuiz {
		*notice = userMessage(service.ErrNotInQuiz)
		return false
	}
	return true
}

// selectAnswer records the answer and lets the save finish on its own;
// write failures never reach the user.
func (b *Bot) selectAnswer(ctx context.Context, sess *service.QuizSession, letter string) error {
	_, err := b.quiz.SelectAnswer(ctx, sess, letter)
	return err
}

func (b *Bot) signIn(ctx context.Context, chatID int64, sess *service.QuizSession, token string) {
	if token == "" {
		b.sendMessage(chatID, "Usage: /signin <id-token>")
		return
	}
	b.completeLogin(ctx, chatID, sess, service.Grant{IDToken: token})
}

func (b *Bot) completeLogin(ctx context.Context, chatID int64, sess *service.QuizSession, grant service.Grant) {
	id, err := b.quiz.Login(ctx, sess, grant)
	if err != nil {
		log.Printf("telegram: chat %d login failed: %v", chatID, err)
		b.sendMessage(chatID, userMessage(err))
		return
	}
	log.Printf("telegram: chat %d logged in as %s", chatID, id.Email)
	b.sendSetup(ctx, chatID, 0, sess)
}

// beginLogin replaces any outstanding login of the chat with a new consent
// link. The redirect comes back through events.
func (b *Bot) beginLogin(chatID int64) {
	if b.auth == nil {
		b.sendMessage(chatID, "Interactive login is not configured here. Use /signin <id-token>.")
		return
	}
	b.cancelLogin(chatID)

	b.loginSeq++
	seq := b.loginSeq
	authURL, cancel := b.auth.Begin(func(grant service.Grant, err error) {
		b.post(func(ctx context.Context) { b.finishLogin(ctx, chatID, seq, grant, err) })
	})
	b.logins[chatID] = pendingLogin{seq: seq, cancel: cancel}

	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("🔑 Sign in with Google", authURL),
	))
	b.sendHTML(chatID, "Open the link and choose your Google account. It works once and expires in a few minutes.", &kb)
}

func (b *Bot) finishLogin(ctx context.Context, chatID int64, seq int, grant service.Grant, err error) {
	p, ok := b.logins[chatID]
	if !ok || p.seq != seq {
		// superseded by a newer /login or a logout
		return
	}
	delete(b.logins, chatID)
	if err != nil {
		log.Printf("telegram: chat %d login redirect: %v", chatID, err)
		b.sendMessage(chatID, "Login did not complete. Send /login to try again.")
		return
	}
	b.completeLogin(ctx, chatID, b.session(ctx, chatID), grant)
}

func (b *Bot) cancelLogin(chatID int64) {
	if p, ok := b.logins[chatID]; ok {
		p.cancel()
		delete(b.logins, chatID)
	}
}

func (b *Bot) setup(ctx context.Context, chatID int64, sess *service.QuizSession, args string) {
	if sess.State == service.StateLoggedOut {
		b.sendMessage(chatID, userMessage(service.ErrNotLoggedIn))
		return
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.sendSetup(ctx, chatID, 0, sess)
		return
	}
	sheet := service.SheetRef{ID: fields[0], Name: strings.Join(fields[1:], " ")}
	b.startQuiz(ctx, chatID, sess, sheet)
}

// startQuiz shows a loading message and fetches the sheet in the
// background. finishLoad turns the message into the first question, or into
// the error when the load fails.
func (b *Bot) startQuiz(ctx context.Context, chatID int64, sess *service.QuizSession, sheet service.SheetRef) {
	if sess.State == service.StateLoggedOut {
		b.sendMainMenu(ctx, chatID, sess)
		return
	}
	if sheet.ID == "" {
		b.sendSetup(ctx, chatID, 0, sess)
		return
	}
	if b.loading[chatID] {
		b.sendMessage(chatID, "⏳ Still loading questions...")
		return
	}

	req, err := b.quiz.PrepareLoad(ctx, sess, sheet)
	if err != nil {
		b.sendMessage(chatID, userMessage(err))
		return
	}

	loading, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Loading questions..."))
	if err != nil {
		log.Printf("telegram: send loading message: %v", err)
	}

	b.loading[chatID] = true
	go func() {
		questions, err := b.quiz.Load(ctx, req)
		b.post(func(ctx context.Context) {
			b.finishLoad(ctx, chatID, loading.MessageID, req, questions, err)
		})
	}()
}

func (b *Bot) finishLoad(ctx context.Context, chatID int64, messageID int, req service.LoadRequest, questions []service.Question, err error) {
	delete(b.loading, chatID)
	sess := b.session(ctx, chatID)
	if err == nil {
		err = b.quiz.Enter(sess, req, questions)
	}
	switch {
	case errors.Is(err, service.ErrSessionChanged):
		log.Printf("telegram: chat %d dropped load of %s", chatID, req.Sheet.ID)
		b.editOrSend(chatID, messageID, escape(userMessage(err)), nil)
	case err != nil:
		log.Printf("telegram: chat %d start quiz: %v", chatID, err)
		b.editOrSend(chatID, messageID, escape(userMessage(err)), setupKeyboard(true))
	default:
		b.showQuestion(chatID, messageID, sess)
	}
}

func (b *Bot) goHome(ctx context.Context, chatID int64, messageID int, sess *service.QuizSession) {
	if sess.State == service.StateLoggedOut {
		b.sendMainMenu(ctx, chatID, sess)
		return
	}
	b.quiz.Home(sess)
	b.sendSetup(ctx, chatID, messageID, sess)
}

func (b *Bot) logout(ctx context.Context, chatID int64, sess *service.QuizSession) {
	b.cancelLogin(chatID)
	b.quiz.Logout(ctx, sess)
	log.Printf("telegram: chat %d logged out", chatID)
	b.sendMessage(chatID, "👋 Logged out.")
	b.sendMainMenu(ctx, chatID, sess)
}

func (b *Bot) exportQuiz(ctx context.Context, chatID int64, sess *service.QuizSession) {
	if sess.State != service.StateInQuiz {
		b.sendMessage(chatID, userMessage(service.ErrNotInQuiz))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, sess.Sheet, sess.Questions); err != nil {
		log.Printf("telegram: chat %d export: %v", chatID, err)
		b.sendMessage(chatID, "Could not build the export.")
		return
	}

	at := b.now()
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.FileName(sess.Sheet, at),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("%d of %d answered", sess.Answered(), len(sess.Questions))
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("telegram: send export: %v", err)
	}

	if b.archive != nil {
		key := export.ObjectKey(sess.Sheet, at)
		if err := b.archive.Put(ctx, key, buf.Bytes()); err != nil {
			log.Printf("export: archive %s: %v", key, err)
			return
		}
		log.Printf("export: archived %s", key)
	}
}

func (b *Bot) sendMainMenu(ctx context.Context, chatID int64, sess *service.QuizSession) {
	if sess.State != service.StateLoggedOut {
		if sess.State == service.StateInQuiz {
			b.showQuestion(chatID, 0, sess)
			return
		}
		b.sendSetup(ctx, chatID, 0, sess)
		return
	}
	text := "📋 <b>Sheet quiz</b>\n\nLog in to start."
	if b.auth == nil {
		text += "\nSend /signin &lt;id-token&gt;."
	}
	b.sendHTML(chatID, text, loginKeyboard(b.auth != nil))
}

func (b *Bot) sendSetup(ctx context.Context, chatID int64, messageID int, sess *service.QuizSession) {
	last := b.quiz.LastSheet(ctx, sess)
	b.editOrSend(chatID, messageID, setupText(sess, last), setupKeyboard(last.ID != ""))
}

func (b *Bot) showQuestion(chatID int64, messageID int, sess *service.QuizSession) {
	b.editOrSend(chatID, messageID, questionText(sess), questionKeyboard(sess))
}

// editOrSend rewrites messageID in place, or sends a new message when there
// is nothing to edit.
func (b *Bot) editOrSend(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		b.sendHTML(chatID, text, kb)
		return
	}
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("telegram: edit message: %v", err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("telegram: send message: %v", err)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("telegram: send message: %v", err)
	}
}

// deleteMessage removes a message carrying a credential from the chat.
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("telegram: delete message: %v", err)
	}
}
