// Package export renders a quiz session as an xlsx workbook and optionally
// archives it to S3-compatible storage.
package export

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/unidoc/unioffice/spreadsheet"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []string{"Row", "Number", "Index", "Primary", "Secondary", "Response"}

// WriteWorkbook writes one sheet listing every question and its recorded answer.
func WriteWorkbook(w io.Writer, sheet service.SheetRef, questions []service.Question) error {
	wb := spreadsheet.New()
	defer func() { _ = wb.Close() }()

	ws := wb.AddSheet()
	ws.SetName(sheetTitle(sheet.Name))

	header := ws.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}
	for _, q := range questions {
		row := ws.AddRow()
		row.AddCell().SetNumber(float64(q.RowNumber))
		row.AddCell().SetString(q.Number)
		row.AddCell().SetString(q.Index)
		row.AddCell().SetString(q.TextPrimary)
		row.AddCell().SetString(q.TextSecondary)
		row.AddCell().SetString(q.Response)
	}

	if err := wb.Save(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// excel rejects these in sheet titles and caps them at 31 characters
var unsafeTitleChars = regexp.MustCompile(`[\[\]:*?/\\]`)

func sheetTitle(name string) string {
	title := unsafeTitleChars.ReplaceAllString(name, "_")
	if title == "" {
		title = service.DefaultSheetName
	}
	if r := []rune(title); len(r) > 31 {
		title = string(r[:31])
	}
	return title
}

// FileName is the attachment name for an export of sheet taken at t.
func FileName(sheet service.SheetRef, t time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", safeKey(sheet.Name), t.UTC().Format("20060102-150405"))
}

// ObjectKey is the archive key for an export of sheet taken at t.
func ObjectKey(sheet service.SheetRef, t time.Time) string {
	return fmt.Sprintf("exports/%s/%s-%s.xlsx", safeKey(sheet.ID), t.UTC().Format("20060102T150405Z"), uuid.NewString())
}

func safeKey(s string) string {
	s = unsafeKeyChars.ReplaceAllString(s, "_")
	if s == "" {
		return "sheet"
	}
	return s
}
