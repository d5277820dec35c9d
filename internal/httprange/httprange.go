// Package httprange interprets HTTP Range request headers against a known
// resource size. Malformed or unsatisfiable headers degrade to the full-file
// window instead of failing, so a broken player never loses playback.
package httprange

import (
	"strconv"
	"strings"
)

// Window is a concrete byte range resolved against a resource of Size bytes.
// Start and End are inclusive offsets. Partial reports whether the response
// should use 206 semantics.
type Window struct {
	Start   int64
	End     int64
	Size    int64
	Partial bool
}

// Length returns the number of bytes covered by the window.
func (w Window) Length() int64 {
	return w.End - w.Start + 1
}

// ContentRange formats the window as a Content-Range header value.
func (w Window) ContentRange() string {
	return "bytes " + strconv.FormatInt(w.Start, 10) + "-" + strconv.FormatInt(w.End, 10) + "/" + strconv.FormatInt(w.Size, 10)
}

func full(size int64) Window {
	return Window{Start: 0, End: size - 1, Size: size}
}

// Parse resolves a Range header of the form "bytes=A-B" into a Window.
// Suffix ranges ("bytes=-B") select the last B bytes; open ranges
// ("bytes=A-") run to the end of the resource. Offsets are clamped to the
// resource bounds, and any window that remains invalid after clamping
// (start past the end, start beyond size) yields the full-file window.
func Parse(header string, size int64) Window {
	if size <= 0 {
		return Window{Start: 0, End: -1, Size: size}
	}
	spec := strings.TrimSpace(header)
	if spec == "" {
		return full(size)
	}
	if !strings.HasPrefix(strings.ToLower(spec), "bytes=") {
		return full(size)
	}
	spec = spec[len("bytes="):]
	// Multi-range requests are collapsed to their first range.
	if idx := strings.IndexByte(spec, ','); idx != -1 {
		spec = spec[:idx]
	}
	dash := strings.IndexByte(spec, '-')
	if dash == -1 {
		return full(size)
	}
	startPart := strings.TrimSpace(spec[:dash])
	endPart := strings.TrimSpace(spec[dash+1:])

	var start, end int64
	switch {
	case startPart == "" && endPart == "":
		return full(size)
	case startPart == "":
		// Suffix range: last N bytes.
		suffix, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || suffix <= 0 {
			return full(size)
		}
		start = size - suffix
		end = size - 1
	case endPart == "":
		first, err := strconv.ParseInt(startPart, 10, 64)
		if err != nil {
			return full(size)
		}
		start = first
		end = size - 1
	default:
		first, err := strconv.ParseInt(startPart, 10, 64)
		if err != nil {
			return full(size)
		}
		last, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil {
			return full(size)
		}
		start = first
		end = last
	}

	if start < 0 {
		start = 0
	}
	if end > size-1 {
		end = size - 1
	}
	if start > end || start >= size {
		return full(size)
	}
	return Window{Start: start, End: end, Size: size, Partial: true}
}
