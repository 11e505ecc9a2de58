package sse

import (
	"strings"
	"testing"
)

func TestParseStreamYieldsOneEventPerDoubleNewline(t *testing.T) {
	var got []string
	stream := "data: {\"type\":\"retry\"}\n\ndata: {\"type\":\"retry\",\"project_name\":\"p\"}\n\n"
	if err := ParseStream(strings.NewReader(stream), func(data string) {
		got = append(got, data)
	}); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(got), got)
	}
}

func TestParseStreamIgnoresNonDataLines(t *testing.T) {
	var got []string
	stream := ": keep-alive\nevent: connected\ndata: {\"type\":\"retry\"}\n\n"
	if err := ParseStream(strings.NewReader(stream), func(data string) {
		got = append(got, data)
	}); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d: %v", len(got), got)
	}
}

// byteAtATimeReader forces ParseStream through many small reads, to check
// the framing survives arbitrary chunk boundaries, not just one big read.
type byteAtATimeReader struct {
	data []byte
	pos  int
}

func (r *byteAtATimeReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return strings.NewReader("").Read(p) // triggers io.EOF via empty reader
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestParseStreamAcrossChunkBoundaries(t *testing.T) {
	var got []string
	stream := "data: {\"a\":1}\n\ndata: {\"a\":2}\n\n"
	r := &byteAtATimeReader{data: []byte(stream)}
	if err := ParseStream(r, func(data string) {
		got = append(got, data)
	}); err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events split byte-at-a-time, got %d: %v", len(got), got)
	}
}
