package registry

import "time"

// MediaRecord describes one uploaded media item. StoredFilename always
// names a file that exists in the media store while the record is visible.
type MediaRecord struct {
	ID             string    `json:"id"`
	StoredFilename string    `json:"storedFilename"`
	OriginalName   string    `json:"originalName"`
	MimeType       string    `json:"mimeType"`
	SizeBytes      int64     `json:"size"`
	CreatedAt      time.Time `json:"createdAt"`
	Converted      bool      `json:"converted"`
}

// Stats summarizes the registry for metrics.
type Stats struct {
	TotalRecords     int
	ConvertedRecords int
	TotalBytes       int64
}
