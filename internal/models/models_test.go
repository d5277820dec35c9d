package models

import "testing"

func TestKindFor(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		filename    string
		want        MediaKind
	}{
		{name: "image content type", contentType: "image/png", filename: "photo.png", want: KindImage},
		{name: "video content type", contentType: "video/mp4", filename: "clip.mp4", want: KindVideo},
		{name: "pdf document", contentType: "application/pdf", filename: "manual.pdf", want: KindDocument},
		{name: "plain text document", contentType: "text/plain", filename: "notes.txt", want: KindDocument},
		{name: "content type with parameters", contentType: "video/webm; codecs=vp9", filename: "clip.webm", want: KindVideo},
		{name: "octet stream falls back to extension", contentType: "application/octet-stream", filename: "clip.mp4", want: KindVideo},
		{name: "empty content type falls back to extension", contentType: "", filename: "photo.jpeg", want: KindImage},
		{name: "unknown stays generic", contentType: "application/x-demogorgon", filename: "thing.dat", want: KindGeneric},
		{name: "nothing to go on", contentType: "", filename: "payload", want: KindGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindFor(tc.contentType, tc.filename); got != tc.want {
				t.Fatalf("KindFor(%q, %q) = %q, want %q", tc.contentType, tc.filename, got, tc.want)
			}
		})
	}
}

func TestParseMediaKind(t *testing.T) {
	if kind, ok := ParseMediaKind(" Video "); !ok || kind != KindVideo {
		t.Fatalf("ParseMediaKind(Video) = %q, %v", kind, ok)
	}
	if _, ok := ParseMediaKind("audio"); ok {
		t.Fatal("expected audio to be rejected")
	}
}
