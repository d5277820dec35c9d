package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

func TestLayoutFor(t *testing.T) {
	cases := []struct {
		duration float64
		tiles    int
		rows     int
	}{
		{duration: 10, tiles: 1, rows: 1},
		{duration: 15, tiles: 1, rows: 1},
		{duration: 16, tiles: 2, rows: 1},
		{duration: 75, tiles: 5, rows: 1},
		{duration: 76, tiles: 6, rows: 2},
		{duration: 600, tiles: 40, rows: 8},
		{duration: 601, tiles: 41, rows: 9},
	}
	for _, tc := range cases {
		layout := LayoutFor(tc.duration)
		if layout.Tiles != tc.tiles {
			t.Errorf("LayoutFor(%v).Tiles = %d, want %d", tc.duration, layout.Tiles, tc.tiles)
		}
		if layout.Rows != tc.rows {
			t.Errorf("LayoutFor(%v).Rows = %d, want %d", tc.duration, layout.Rows, tc.rows)
		}
		if layout.Columns != Columns || layout.TileWidth != TileWidth || layout.TileHeight != TileHeight {
			t.Errorf("LayoutFor(%v) geometry = %+v", tc.duration, layout)
		}
	}
}

func TestGenerateWritesSpriteAndCues(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator("ffmpeg", fakeProber{duration: 100}, nil)
	var capturedArgs []string
	gen.run = func(_ context.Context, args []string) error {
		capturedArgs = args
		// The real invocation writes the sprite; emulate that.
		return os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o644)
	}

	result, ok := gen.Generate(context.Background(), "/videos/in.mp4", dir, "clip-abc")
	if !ok {
		t.Fatal("expected preview assets")
	}
	if result.SpritePath != filepath.Join(dir, "clip-abc.jpg") {
		t.Fatalf("sprite path = %q", result.SpritePath)
	}
	if result.CuePath != filepath.Join(dir, "clip-abc.vtt") {
		t.Fatalf("cue path = %q", result.CuePath)
	}
	if result.Layout.Tiles != 7 || result.Layout.Rows != 2 {
		t.Fatalf("layout = %+v", result.Layout)
	}

	filter := fmt.Sprintf("fps=1/%d,scale=%d:%d,tile=%dx%d", IntervalSec, TileWidth, TileHeight, Columns, 2)
	joined := strings.Join(capturedArgs, " ")
	if !strings.Contains(joined, filter) {
		t.Fatalf("ffmpeg args %q missing filter %q", joined, filter)
	}

	cues, err := os.ReadFile(result.CuePath)
	if err != nil {
		t.Fatalf("read cues: %v", err)
	}
	if !strings.HasPrefix(string(cues), "WEBVTT\n") {
		t.Fatalf("cue index missing WEBVTT header: %q", cues)
	}
}

func TestGenerateSkipsShortVideos(t *testing.T) {
	gen := NewGenerator("ffmpeg", fakeProber{duration: 9.5}, nil)
	gen.run = func(context.Context, []string) error {
		t.Fatal("ffmpeg must not run for short videos")
		return nil
	}
	if _, ok := gen.Generate(context.Background(), "in.mp4", t.TempDir(), "clip"); ok {
		t.Fatal("expected short video to be skipped")
	}
}

func TestGenerateSwallowsProbeFailure(t *testing.T) {
	gen := NewGenerator("ffmpeg", fakeProber{err: errors.New("no such file")}, nil)
	if _, ok := gen.Generate(context.Background(), "in.mp4", t.TempDir(), "clip"); ok {
		t.Fatal("expected probe failure to produce no assets")
	}
}

func TestGenerateRemovesSpriteWhenCueWriteFails(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator("ffmpeg", fakeProber{duration: 60}, nil)
	nested := filepath.Join(dir, "assets")
	gen.run = func(_ context.Context, args []string) error {
		if err := os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o644); err != nil {
			return err
		}
		// Replace the cue target with a directory so WriteFile fails.
		return os.Mkdir(filepath.Join(nested, "clip.vtt"), 0o755)
	}
	if _, ok := gen.Generate(context.Background(), "in.mp4", nested, "clip"); ok {
		t.Fatal("expected failure when cue index cannot be written")
	}
	if _, err := os.Stat(filepath.Join(nested, "clip.jpg")); !os.IsNotExist(err) {
		t.Fatal("expected orphan sprite to be removed")
	}
}

func TestGenerateReportsToolFailure(t *testing.T) {
	gen := NewGenerator("ffmpeg", fakeProber{duration: 60}, nil)
	gen.run = func(context.Context, []string) error {
		return errors.New("exit status 1")
	}
	if _, ok := gen.Generate(context.Background(), "in.mp4", t.TempDir(), "clip"); ok {
		t.Fatal("expected tool failure to produce no assets")
	}
}
