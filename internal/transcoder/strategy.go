package transcoder

// Strategy selects how the input is turned into MP4.
type Strategy string

const (
	// StrategyRemux copies streams into the new container without
	// re-encoding.
	StrategyRemux Strategy = "remux"
	// StrategyReencode re-encodes to H.264/AAC with fixed quality settings.
	StrategyReencode Strategy = "reencode"
)

func (s Strategy) phaseName() string {
	if s == StrategyReencode {
		return "re-encoding"
	}
	return "remuxing"
}

// mp4VideoCodecs and mp4AudioCodecs are the ffprobe codec names that
// browsers decode from an MP4 container. Codecs MP4 can carry but browsers
// cannot play (mpeg4 part 2, ac3, eac3, alac) are re-encoded.
var mp4VideoCodecs = map[string]bool{
	"h264": true,
	"hevc": true,
	"av1":  true,
	"vp9":  true,
}

var mp4AudioCodecs = map[string]bool{
	"aac":  true,
	"mp3":  true,
	"opus": true,
	"flac": true,
}

// ChooseStrategy picks the strategy for a probed input. A nil probe (probe
// failed) selects remux; the engine falls back to re-encode if ffmpeg then
// rejects a stream.
func ChooseStrategy(p *ProbeResult) Strategy {
	if p == nil {
		return StrategyRemux
	}
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			if s.AttachedPic {
				continue
			}
			if !mp4VideoCodecs[s.CodecName] {
				return StrategyReencode
			}
		case "audio":
			if !mp4AudioCodecs[s.CodecName] {
				return StrategyReencode
			}
		}
	}
	return StrategyRemux
}

// Args builds the ffmpeg argument list for converting in to out.
func (s Strategy) Args(in, out string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", in}
	switch s {
	case StrategyReencode:
		args = append(args,
			"-c:v", "libx264",
			"-preset", "fast",
			"-crf", "23",
			"-c:a", "aac",
			"-b:a", "128k",
		)
	default:
		args = append(args, "-c", "copy")
	}
	// Subtitle and data streams rarely survive the trip into MP4.
	args = append(args, "-sn", "-dn", "-movflags", "+faststart", "-f", "mp4", out)
	return args
}
