package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/PoluyanbIch/SheetQuizBot/internal/auth"
	"github.com/PoluyanbIch/SheetQuizBot/internal/config"
	"github.com/PoluyanbIch/SheetQuizBot/internal/export"
	"github.com/PoluyanbIch/SheetQuizBot/internal/httpserver"
	"github.com/PoluyanbIch/SheetQuizBot/internal/metrics"
	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
	"github.com/PoluyanbIch/SheetQuizBot/internal/sheets"
	"github.com/PoluyanbIch/SheetQuizBot/internal/storage"
	"github.com/PoluyanbIch/SheetQuizBot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := storage.Open(ctx, cfg.LocalStore)
	if err != nil {
		log.Fatalf("open local store: %v", err)
	}
	defer local.Close()

	var questions service.QuestionStore
	switch cfg.QuestionBackend {
	case config.BackendXLSX:
		log.Printf("sheets: reading workbooks from %s", cfg.WorkbookDir)
		questions = sheets.NewWorkbook(cfg.WorkbookDir)
	default:
		opts := []sheets.GoogleOption{sheets.WithAPIKey(cfg.SheetsAPIKey)}
		if cfg.SheetsEndpoint != "" {
			opts = append(opts, sheets.WithEndpoint(cfg.SheetsEndpoint))
		}
		questions = sheets.NewGoogle(opts...)
	}

	quizCfg := service.QuizConfig{
		AllowList:        service.NewAllowList(cfg.AllowedEmails),
		Store:            questions,
		Local:            local,
		DefaultSheetName: cfg.DefaultSheetName,
	}
	botOpts := telegram.Options{Debug: cfg.TelegramDebug}

	// /metrics and the login redirect share one listener.
	mux := http.NewServeMux()
	if cfg.HTTPAddr != "" {
		m := metrics.New()
		quizCfg.Observer = m
		mux.Handle("/metrics", m.Handler())
	}

	if cfg.GoogleClientID != "" {
		google, err := auth.NewGoogle(auth.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       cfg.GoogleScopes,
		})
		if err != nil {
			log.Fatalf("google login: %v", err)
		}
		verifier, err := auth.NewIDTokenVerifier(ctx, cfg.GoogleClientID, nil)
		if err != nil {
			log.Fatalf("google id tokens: %v", err)
		}
		quizCfg.Revoker = google
		quizCfg.Verifier = verifier
		botOpts.Auth = google
		mux.Handle(google.CallbackPath(), google)
	} else {
		log.Println("auth: GOOGLE_CLIENT_ID not set, logins are refused")
	}

	if cfg.HTTPAddr != "" {
		go func() {
			if err := httpserver.Serve(ctx, cfg.HTTPAddr, mux); err != nil {
				log.Printf("http: %v", err)
			}
		}()
	}

	if cfg.ExportS3 != nil {
		archive, err := export.NewS3Archive(ctx, *cfg.ExportS3)
		if err != nil {
			log.Fatalf("export archive: %v", err)
		}
		botOpts.Archive = archive
	}

	log.Printf("quiz: %d allowed emails, %s backend", len(cfg.AllowedEmails), cfg.QuestionBackend)
	bot, err := telegram.NewBot(cfg.TelegramToken, service.NewQuiz(quizCfg), botOpts)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("🤖 Bot is starting...")
	bot.Start(ctx)
	log.Println("bot stopped")
}
