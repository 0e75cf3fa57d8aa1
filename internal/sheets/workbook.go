package sheets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unioffice/spreadsheet/reference"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

var _ service.QuestionStore = (*Workbook)(nil)

// Workbook serves questions from <dir>/<sheet id>.xlsx files laid out like
// the online sheet. Writes rewrite the file in place.
type Workbook struct {
	dir    string
	layout service.ColumnLayout
	mu     sync.Mutex
}

func NewWorkbook(dir string) *Workbook {
	return &Workbook{dir: dir, layout: service.DefaultLayout}
}

func (w *Workbook) path(sheetID string) (string, error) {
	if sheetID == "" || strings.ContainsAny(sheetID, `/\`) || sheetID == "." || sheetID == ".." {
		return "", fmt.Errorf("invalid workbook id %q", sheetID)
	}
	return filepath.Join(w.dir, sheetID+".xlsx"), nil
}

func (w *Workbook) LoadQuestions(_ context.Context, sheet service.SheetRef, _ string) ([]service.Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, err := w.path(sheet.ID)
	if err != nil {
		return nil, &service.RemoteReadError{Message: err.Error(), Err: err}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &service.RemoteReadError{Message: fmt.Sprintf("workbook %s not found", sheet.ID), Err: err}
	}
	wb, err := spreadsheet.Open(path)
	if err != nil {
		return nil, &service.RemoteReadError{Message: "failed to open workbook", Err: err}
	}
	defer func() { _ = wb.Close() }()

	ws, err := wb.GetSheet(sheet.Name)
	if err != nil {
		return nil, &service.RemoteReadError{Message: fmt.Sprintf("sheet %s not found", sheet.Name), Err: err}
	}

	rows := w.readRows(ws)
	log.Printf("sheets: read %d rows from %s", len(rows), path)
	return w.layout.DecodeRows(rows), nil
}

// readRows returns rows from FirstRow down to the last non-empty one. Missing
// rows in between come back empty so row numbers stay aligned.
func (w *Workbook) readRows(ws spreadsheet.Sheet) [][]string {
	width := w.layout.LastColumn() + 1
	var rows [][]string
	for _, row := range ws.Rows() {
		offset := int(row.RowNumber()) - w.layout.FirstRow
		if offset < 0 {
			continue
		}
		cells := make([]string, width)
		empty := true
		for _, cell := range row.Cells() {
			col, err := cell.Column()
			if err != nil {
				continue
			}
			idx := int(reference.ColumnToIndex(col))
			if idx >= width {
				continue
			}
			cells[idx] = cell.GetFormattedValue()
			if cells[idx] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		for len(rows) < offset {
			rows = append(rows, nil)
		}
		rows = append(rows, cells)
	}
	return rows
}

func (w *Workbook) WriteResponse(_ context.Context, sheet service.SheetRef, _ string, row int, letter string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, err := w.path(sheet.ID)
	if err != nil {
		return err
	}
	wb, err := spreadsheet.Open(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	ws, err := wb.GetSheet(sheet.Name)
	if err != nil {
		return fmt.Errorf("find sheet %s: %w", sheet.Name, err)
	}
	ws.Cell(fmt.Sprintf("%s%d", w.layout.ResponseColumnName(), row)).SetString(letter)
	if err := wb.SaveToFile(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
