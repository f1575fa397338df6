package api

import "time"

// Row is one line of payload data. Numeric formats fill Ints; the text
// formats (String/None) carry a single string in Text instead.
type Row struct {
	Ints []int64 `json:"ints,omitempty"`
	Text string  `json:"text,omitempty"`
}

// TextRow builds a Row holding a text payload.
func TextRow(s string) Row { return Row{Text: s} }

// IntRow builds a Row from numeric elements.
func IntRow(vs ...int64) Row { return Row{Ints: vs} }

// Frame is one decoded publish event: a topic plus its typed payload rows.
// Dim (the specifier count) is len(Formats), which always equals len(Rows).
type Frame struct {
	Topic     string   `json:"topic"`
	RowLength uint16   `json:"row_length"`
	Formats   []Format `json:"formats"`
	Rows      []Row    `json:"rows"`
}

// Dim returns the number of parallel rows carried by the frame.
func (f Frame) Dim() int { return len(f.Formats) }

// Text returns the text payload of a String/None frame, or "" for numeric frames.
func (f Frame) Text() string {
	if len(f.Formats) > 0 && f.Formats[0].Text() && len(f.Rows) > 0 {
		return f.Rows[0].Text
	}
	return ""
}

// Record is a frame as persisted by the recorder.
type Record struct {
	ID    int64     `json:"id"`
	At    time.Time `json:"at"`
	Hash  string    `json:"hash"`
	Frame Frame     `json:"frame"`
}
