package transcoder

import (
	"errors"
	"strings"
	"testing"
)

func TestChooseStrategy(t *testing.T) {
	tests := []struct {
		name  string
		probe *ProbeResult
		want  Strategy
	}{
		{"probe failed", nil, StrategyRemux},
		{"h264 aac", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "h264"}, {CodecType: "audio", CodecName: "aac"}}}, StrategyRemux},
		{"wmv", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "wmv3"}}}, StrategyReencode},
		{"pcm audio", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "h264"}, {CodecType: "audio", CodecName: "pcm_s16le"}}}, StrategyReencode},
		{"cover art ignored", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "mjpeg", AttachedPic: true}, {CodecType: "audio", CodecName: "mp3"}}}, StrategyRemux},
		{"xvid avi", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "mpeg4"}, {CodecType: "audio", CodecName: "mp3"}}}, StrategyReencode},
		{"ac3 audio", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "h264"}, {CodecType: "audio", CodecName: "ac3"}}}, StrategyReencode},
		{"eac3 audio", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "hevc"}, {CodecType: "audio", CodecName: "eac3"}}}, StrategyReencode},
		{"flac audio", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "av1"}, {CodecType: "audio", CodecName: "flac"}}}, StrategyRemux},
		{"subtitles ignored", &ProbeResult{Streams: []StreamInfo{{CodecType: "video", CodecName: "vp9"}, {CodecType: "subtitle", CodecName: "ass"}}}, StrategyRemux},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseStrategy(tt.probe); got != tt.want {
				t.Errorf("ChooseStrategy() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStrategyArgs(t *testing.T) {
	remux := strings.Join(StrategyRemux.Args("in.avi", "out.mp4"), " ")
	if !strings.Contains(remux, "-i in.avi") || !strings.Contains(remux, "-c copy -sn -dn -movflags +faststart -f mp4 out.mp4") {
		t.Errorf("remux args = %q", remux)
	}
	reencode := strings.Join(StrategyReencode.Args("in.avi", "out.mp4"), " ")
	if !strings.HasSuffix(reencode, "-f mp4 out.mp4") || !strings.Contains(reencode, "libx264") {
		t.Errorf("reencode args = %q", reencode)
	}
}

func TestIsStreamIncompatible(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("Could not find tag for codec"), false},
		{"remux tag error", &TranscodeError{Strategy: StrategyRemux, Stderr: "Could not find tag for codec pcm_s16le"}, true},
		{"reencode tag error", &TranscodeError{Strategy: StrategyReencode, Stderr: "Could not find tag for codec"}, false},
		{"remux other", &TranscodeError{Strategy: StrategyRemux, Stderr: "No space left on device"}, false},
	}
	for _, tt := range tests {
		if got := IsStreamIncompatible(tt.err); got != tt.want {
			t.Errorf("%s: IsStreamIncompatible() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
