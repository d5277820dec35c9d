package encoder

import (
	"fmt"
	"strconv"
)

// Profile describes the delivery target for a transcode: bounded frame
// height, constant-rate-factor quality, encode preset, audio bitrate, and a
// web-friendly container layout. Threads is an operational tuning knob; zero
// lets ffmpeg use all available cores.
type Profile struct {
	MaxHeight    int
	CRF          int
	Preset       string
	AudioBitrate string
	Threads      int
}

// DefaultProfile returns the standard web delivery profile.
func DefaultProfile() Profile {
	return Profile{
		MaxHeight:    720,
		CRF:          23,
		Preset:       "veryfast",
		AudioBitrate: "128k",
	}
}

func (p Profile) args(input, output string) []string {
	height := p.MaxHeight
	if height <= 0 {
		height = 720
	}
	crf := p.CRF
	if crf <= 0 {
		crf = 23
	}
	preset := p.Preset
	if preset == "" {
		preset = "veryfast"
	}
	audio := p.AudioBitrate
	if audio == "" {
		audio = "128k"
	}
	args := []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", height),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "aac",
		"-b:a", audio,
		"-movflags", "+faststart",
	}
	if p.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(p.Threads))
	}
	args = append(args,
		"-nostats",
		"-loglevel", "error",
		"-progress", "pipe:1",
		output,
	)
	return args
}
