package service

import "testing"

func TestDecodeRowDefaultLayout(t *testing.T) {
	q := DefaultLayout.DecodeRow(3, []string{"12", "1.1", "Eng text", "한글 text", "", "A"})
	want := Question{RowNumber: 3, Number: "12", Index: "1.1", TextPrimary: "Eng text", TextSecondary: "한글 text", Response: "A"}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}
}

func TestDecodeRowsShortRowsAndOrder(t *testing.T) {
	rows := [][]string{
		{"1", "1.1", "First"},
		{},
		{"3", "1.3", "Third", "셋째", "skip", " b "},
	}
	qs := DefaultLayout.DecodeRows(rows)
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	for i, q := range qs {
		if q.RowNumber != 3+i {
			t.Fatalf("question %d: expected row %d, got %d", i, 3+i, q.RowNumber)
		}
	}
	if qs[0].TextSecondary != "" || qs[0].Response != "" {
		t.Fatalf("missing cells should be empty strings: %+v", qs[0])
	}
	if qs[1] != (Question{RowNumber: 4}) {
		t.Fatalf("empty row should decode to blanks: %+v", qs[1])
	}
	if qs[2].Response != "B" {
		t.Fatalf("expected response B, got %q", qs[2].Response)
	}
}

func TestLayoutRanges(t *testing.T) {
	if got := DefaultLayout.ReadRange("Sheet1"); got != "Sheet1!A3:F" {
		t.Fatalf("unexpected read range %q", got)
	}
	if got := DefaultLayout.ResponseCell("Sheet1", 42); got != "Sheet1!F42" {
		t.Fatalf("unexpected response cell %q", got)
	}
	if got := DefaultLayout.ResponseCell("My Quiz's", 5); got != "'My Quiz''s'!F5" {
		t.Fatalf("unexpected quoted cell %q", got)
	}
}

func TestColumnName(t *testing.T) {
	cases := map[int]string{0: "A", 5: "F", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for in, want := range cases {
		if got := ColumnName(in); got != want {
			t.Fatalf("ColumnName(%d) = %q, want %q", in, got, want)
		}
	}
}
