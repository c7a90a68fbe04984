package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// StreamInfo is one stream as reported by ffprobe.
type StreamInfo struct {
	Index       int
	CodecType   string
	CodecName   string
	Width       int
	Height      int
	AttachedPic bool
}

// ProbeResult holds what the engine needs to know about an input.
type ProbeResult struct {
	FormatName string
	Duration   float64
	Streams    []StreamInfo
}

type ffprobeOutput struct {
	Streams []struct {
		Index       int    `json:"index"`
		CodecType   string `json:"codec_type"`
		CodecName   string `json:"codec_name"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against path.
func (e *Engine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	result := &ProbeResult{FormatName: out.Format.FormatName}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
			result.Duration = d
		}
	}
	for _, s := range out.Streams {
		result.Streams = append(result.Streams, StreamInfo{
			Index:       s.Index,
			CodecType:   s.CodecType,
			CodecName:   s.CodecName,
			Width:       s.Width,
			Height:      s.Height,
			AttachedPic: s.Disposition.AttachedPic == 1,
		})
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("ffprobe found no streams in %s", path)
	}
	return result, nil
}
