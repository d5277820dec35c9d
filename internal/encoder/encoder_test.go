package encoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line    string
		seconds float64
		ok      bool
	}{
		{line: "out_time_us=15000000", seconds: 15, ok: true},
		{line: "out_time_ms=15000000", seconds: 15, ok: true},
		{line: "out_time=00:01:30.50", seconds: 90.5, ok: true},
		{line: "out_time=01:00:00.00", seconds: 3600, ok: true},
		{line: "out_time_us=0", seconds: 0, ok: true},
		{line: "out_time_us=-1", ok: false},
		{line: "out_time=junk", ok: false},
		{line: "out_time=00:01", ok: false},
		{line: "frame=42", ok: false},
		{line: "progress=continue", ok: false},
		{line: "", ok: false},
	}
	for _, tc := range cases {
		seconds, ok := parseProgressLine(tc.line)
		if ok != tc.ok {
			t.Errorf("parseProgressLine(%q) ok = %v, want %v", tc.line, ok, tc.ok)
			continue
		}
		if ok && seconds != tc.seconds {
			t.Errorf("parseProgressLine(%q) = %v, want %v", tc.line, seconds, tc.seconds)
		}
	}
}

func TestProfileArgs(t *testing.T) {
	profile := DefaultProfile()
	args := profile.args("in.mov", "out.mp4")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i in.mov",
		"scale=-2:'min(720,ih)'",
		"-c:v libx264",
		"-crf 23",
		"-preset veryfast",
		"-b:a 128k",
		"-movflags +faststart",
		"-progress pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "-threads") {
		t.Errorf("default profile must not pin threads: %q", joined)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output must be the last argument, got %q", args[len(args)-1])
	}

	profile.Threads = 2
	if joined := strings.Join(profile.args("a", "b"), " "); !strings.Contains(joined, "-threads 2") {
		t.Errorf("threads not applied: %q", joined)
	}
}

func TestProcessErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ProcessError{Err: cause, Detail: "moov atom not found"}
	if !errors.Is(err, cause) {
		t.Fatal("ProcessError must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("error text missing stderr detail: %q", err.Error())
	}
}

func TestTailWriterKeepsTail(t *testing.T) {
	var buf bytes.Buffer
	w := &tailWriter{limit: 10, buf: &buf}
	for i := 0; i < 10; i++ {
		if _, err := w.Write([]byte("0123456789")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Write([]byte("THE-END")); err != nil {
		t.Fatal(err)
	}
	got := w.buf.String()
	if len(got) > 10 {
		t.Fatalf("tail grew to %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "THE-END") {
		t.Fatalf("tail lost the most recent write: %q", got)
	}
}
