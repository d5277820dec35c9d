package httprange

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		size    int64
		start   int64
		end     int64
		partial bool
	}{
		{name: "no header", header: "", size: 1000, start: 0, end: 999},
		{name: "closed range", header: "bytes=0-499", size: 1000, start: 0, end: 499, partial: true},
		{name: "interior range", header: "bytes=500-750", size: 1000, start: 500, end: 750, partial: true},
		{name: "open range", header: "bytes=200-", size: 1000, start: 200, end: 999, partial: true},
		{name: "suffix range", header: "bytes=-300", size: 1000, start: 700, end: 999, partial: true},
		{name: "suffix larger than file", header: "bytes=-2000", size: 1000, start: 0, end: 999, partial: true},
		{name: "end clamped", header: "bytes=900-5000", size: 1000, start: 900, end: 999, partial: true},
		{name: "single byte", header: "bytes=0-0", size: 1000, start: 0, end: 0, partial: true},
		{name: "last byte", header: "bytes=999-999", size: 1000, start: 999, end: 999, partial: true},
		{name: "start past end degrades", header: "bytes=700-200", size: 1000, start: 0, end: 999},
		{name: "start beyond size degrades", header: "bytes=1000-", size: 1000, start: 0, end: 999},
		{name: "zero suffix degrades", header: "bytes=-0", size: 1000, start: 0, end: 999},
		{name: "missing unit degrades", header: "0-499", size: 1000, start: 0, end: 999},
		{name: "garbage degrades", header: "bytes=abc-def", size: 1000, start: 0, end: 999},
		{name: "bare dash degrades", header: "bytes=-", size: 1000, start: 0, end: 999},
		{name: "no dash degrades", header: "bytes=500", size: 1000, start: 0, end: 999},
		{name: "multi range uses first", header: "bytes=0-99,200-299", size: 1000, start: 0, end: 99, partial: true},
		{name: "case insensitive unit", header: "Bytes=10-19", size: 1000, start: 10, end: 19, partial: true},
		{name: "whitespace tolerated", header: " bytes=10 - 19 ", size: 1000, start: 10, end: 19, partial: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window := Parse(tc.header, tc.size)
			if window.Start != tc.start || window.End != tc.end {
				t.Fatalf("Parse(%q, %d) = [%d,%d], want [%d,%d]", tc.header, tc.size, window.Start, window.End, tc.start, tc.end)
			}
			if window.Partial != tc.partial {
				t.Fatalf("Parse(%q, %d) partial = %v, want %v", tc.header, tc.size, window.Partial, tc.partial)
			}
			if window.Size != tc.size {
				t.Fatalf("window size = %d, want %d", window.Size, tc.size)
			}
		})
	}
}

func TestWindowLength(t *testing.T) {
	window := Parse("bytes=10-19", 100)
	if got := window.Length(); got != 10 {
		t.Fatalf("Length() = %d, want 10", got)
	}
	if got := window.ContentRange(); got != "bytes 10-19/100" {
		t.Fatalf("ContentRange() = %q", got)
	}
}

func TestParseEmptyResource(t *testing.T) {
	window := Parse("bytes=0-10", 0)
	if window.Partial {
		t.Fatal("expected full window for empty resource")
	}
	if window.Length() != 0 {
		t.Fatalf("Length() = %d, want 0", window.Length())
	}
}
