package preview

import (
	"fmt"
	"math"
	"strings"
)

// BuildCues renders the WebVTT cue index for a sprite grid. Tile i covers
// [i*interval, min((i+1)*interval, duration)) and maps to the row-major grid
// position (i mod columns, i div columns). The final cue ends at the exact
// video duration, not at a whole interval boundary.
func BuildCues(layout Layout, spriteName string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for i := 0; i < layout.Tiles; i++ {
		start := float64(i * layout.Interval)
		end := float64((i + 1) * layout.Interval)
		if end > layout.Duration {
			end = layout.Duration
		}
		x := (i % layout.Columns) * layout.TileWidth
		y := (i / layout.Columns) * layout.TileHeight
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(start), FormatTimestamp(end))
		fmt.Fprintf(&b, "%s#xywh=%d,%d,%d,%d\n", spriteName, x, y, layout.TileWidth, layout.TileHeight)
	}
	return b.String()
}

// FormatTimestamp renders seconds as a WebVTT HH:MM:SS.mmm timestamp.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	secs := millis / 1000
	millis -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
