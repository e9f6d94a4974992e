package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

// FFprobeExtractor reads the duration of the first video stream with the
// ffprobe binary. It runs for every video container and only provides the
// Video length.
type FFprobeExtractor struct {
	binary string
}

// NewFFprobeExtractor returns the ffprobe duration strategy. An empty binary
// means "ffprobe" on PATH.
func NewFFprobeExtractor(binary string) *FFprobeExtractor {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobeExtractor{binary: binary}
}

// Name implements Extractor.
func (*FFprobeExtractor) Name() string { return "ffprobe" }

// Accepts implements Extractor.
func (*FFprobeExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind == mediatypes.KindVideo
}

// Extract implements Extractor.
func (e *FFprobeExtractor) Extract(ctx context.Context, t Target) (*Partial, error) {
	cmd := exec.CommandContext(ctx, e.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "v:0",
		t.Path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	length := videoLength(stdout.Bytes())
	logging.Debug("ffprobe reported %.3fs for %s", length, t.Path)

	p := &Partial{}
	p.SetSpecific(mediatypes.VideoMetadata(length))
	return p, nil
}

// videoLength returns the first stream's duration in seconds from ffprobe
// JSON output. duration_ts times time_base is preferred; the textual
// duration is the fallback. A file without a video stream has length 0.
func videoLength(output []byte) float64 {
	stream := gjson.GetBytes(output, "streams.0")
	if !stream.Exists() {
		return 0
	}

	ticks := stream.Get("duration_ts")
	if num, den, ok := parseRational(stream.Get("time_base").String()); ok && ticks.Exists() {
		return float64(ticks.Int()) * float64(num) / float64(den)
	}

	if d := stream.Get("duration"); d.Exists() {
		if secs, err := strconv.ParseFloat(d.String(), 64); err == nil {
			return secs
		}
	}
	return 0
}

// parseRational parses "num/den" with a non-zero denominator.
func parseRational(s string) (int64, int64, bool) {
	numStr, denStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, false
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

// FFprobeAvailable reports whether the binary can be found.
func FFprobeAvailable(binary string) bool {
	if binary == "" {
		binary = "ffprobe"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}
