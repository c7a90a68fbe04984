package webhook

import (
	"fmt"
	"time"
)

// Payload is the chat-style embed message sent to the webhook.
type Payload struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds"`
}

type Embed struct {
	Title     string       `json:"title"`
	URL       string       `json:"url"`
	Timestamp string       `json:"timestamp,omitempty"`
	Video     *EmbedMedia  `json:"video,omitempty"`
	Thumbnail *EmbedMedia  `json:"thumbnail,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
}

type EmbedMedia struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Media is the subset of a media record the payload describes.
type Media struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	CreatedAt    time.Time
	ShortURL     string
	VideoURL     string
	// PosterURL is optional.
	PosterURL string
}

// BuildPayload describes m. The short URL goes in the message body so chat
// clients unfurl it into a player.
func BuildPayload(m Media, label string) Payload {
	title := label
	if title == "" {
		title = m.OriginalName
	}
	content := m.ShortURL
	if label != "" {
		content = label + "\n" + m.ShortURL
	}
	embed := Embed{
		Title: title,
		URL:   m.ShortURL,
		Video: &EmbedMedia{URL: m.VideoURL},
		Fields: []EmbedField{
			{Name: "Type", Value: m.MimeType, Inline: true},
			{Name: "Size", Value: humanSize(m.SizeBytes), Inline: true},
		},
	}
	if m.PosterURL != "" {
		embed.Thumbnail = &EmbedMedia{URL: m.PosterURL}
	}
	if !m.CreatedAt.IsZero() {
		embed.Timestamp = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	return Payload{Content: content, Embeds: []Embed{embed}}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
