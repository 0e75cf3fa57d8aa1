package service

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnLayout pins each Question field to a zero-based sheet column.
// Rows above FirstRow are headers.
type ColumnLayout struct {
	FirstRow      int
	Number        int
	Index         int
	TextPrimary   int
	TextSecondary int
	Response      int
}

// DefaultLayout is the A..F sheet layout: column E is reserved and skipped.
var DefaultLayout = ColumnLayout{
	FirstRow:      3,
	Number:        0,
	Index:         1,
	TextPrimary:   2,
	TextSecondary: 3,
	Response:      5,
}

// LastColumn is the widest column the layout reads.
func (l ColumnLayout) LastColumn() int {
	last := l.Number
	for _, c := range []int{l.Index, l.TextPrimary, l.TextSecondary, l.Response} {
		if c > last {
			last = c
		}
	}
	return last
}

// ReadRange is the A1 range covering every question row, e.g. Sheet1!A3:F.
func (l ColumnLayout) ReadRange(sheetName string) string {
	return fmt.Sprintf("%s!A%d:%s", quoteSheetName(sheetName), l.FirstRow, ColumnName(l.LastColumn()))
}

// ResponseCell is the single A1 cell holding the answer for row.
func (l ColumnLayout) ResponseCell(sheetName string, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheetName(sheetName), ColumnName(l.Response), row)
}

// ResponseColumnName is the letter of the response column.
func (l ColumnLayout) ResponseColumnName() string {
	return ColumnName(l.Response)
}

// DecodeRow maps the cells of one returned row. Short rows read as trailing
// empty cells.
func (l ColumnLayout) DecodeRow(rowNumber int, cells []string) Question {
	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return cells[i]
	}
	return Question{
		RowNumber:     rowNumber,
		Number:        cell(l.Number),
		Index:         cell(l.Index),
		TextPrimary:   cell(l.TextPrimary),
		TextSecondary: cell(l.TextSecondary),
		Response:      strings.ToUpper(strings.TrimSpace(cell(l.Response))),
	}
}

// DecodeRows maps rows in the order given, numbering them from FirstRow.
func (l ColumnLayout) DecodeRows(rows [][]string) []Question {
	questions := make([]Question, 0, len(rows))
	for i, row := range rows {
		questions = append(questions, l.DecodeRow(l.FirstRow+i, row))
	}
	return questions
}

// ColumnName converts a zero-based column index to its letter form (0 -> A, 26 -> AA).
func ColumnName(index int) string {
	name := ""
	for index >= 0 {
		name = string(rune('A'+index%26)) + name
		index = index/26 - 1
	}
	return name
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func quoteSheetName(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
