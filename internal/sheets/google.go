package sheets

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

var _ service.QuestionStore = (*Google)(nil)

// Google reads and writes questions through the Sheets v4 values API.
// Requests carry the session's bearer token when there is one, otherwise the
// configured API key (read-only deployments).
type Google struct {
	layout   service.ColumnLayout
	apiKey   string
	endpoint string
}

type GoogleOption func(*Google)

func WithAPIKey(key string) GoogleOption {
	return func(g *Google) { g.apiKey = key }
}

// WithEndpoint overrides the API base URL, e.g. for a local emulator.
func WithEndpoint(endpoint string) GoogleOption {
	return func(g *Google) { g.endpoint = endpoint }
}

func WithLayout(layout service.ColumnLayout) GoogleOption {
	return func(g *Google) { g.layout = layout }
}

func NewGoogle(opts ...GoogleOption) *Google {
	g := &Google{layout: service.DefaultLayout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) client(ctx context.Context, credential string) (*gsheets.Service, error) {
	var opts []option.ClientOption
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	switch {
	case credential != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"})
		opts = append(opts, option.WithTokenSource(ts))
	case g.apiKey != "":
		opts = append(opts, option.WithAPIKey(g.apiKey))
	default:
		opts = append(opts, option.WithoutAuthentication())
	}
	return gsheets.NewService(ctx, opts...)
}

func (g *Google) LoadQuestions(ctx context.Context, sheet service.SheetRef, credential string) ([]service.Question, error) {
	svc, err := g.client(ctx, credential)
	if err != nil {
		return nil, &service.RemoteReadError{Message: "could not create sheets client", Err: err}
	}
	readRange := g.layout.ReadRange(sheet.Name)
	resp, err := svc.Spreadsheets.Values.Get(sheet.ID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, readError(err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		rows = append(rows, cellStrings(row))
	}
	log.Printf("sheets: read %d rows from %s", len(rows), readRange)
	return g.layout.DecodeRows(rows), nil
}

func (g *Google) WriteResponse(ctx context.Context, sheet service.SheetRef, credential string, row int, letter string) error {
	if credential == "" {
		return errors.New("bearer credential required to write")
	}
	svc, err := g.client(ctx, credential)
	if err != nil {
		return fmt.Errorf("create sheets client: %w", err)
	}
	cell := g.layout.ResponseCell(sheet.Name, row)
	values := &gsheets.ValueRange{Values: [][]interface{}{{letter}}}
	if _, err := svc.Spreadsheets.Values.Update(sheet.ID, cell, values).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", cell, err)
	}
	return nil
}

func readError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &service.RemoteReadError{Message: apiErr.Message, Err: err}
	}
	return &service.RemoteReadError{Message: "failed to fetch questions from the sheet", Err: err}
}

func cellStrings(row []interface{}) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			cells[i] = s
			continue
		}
		cells[i] = fmt.Sprint(v)
	}
	return cells
}
