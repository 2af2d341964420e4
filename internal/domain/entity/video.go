package entity

// VideoMetadata summarizes a source video as reported by the media tool.
type VideoMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	BitRate         int64   `json:"bit_rate"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FPS             float64 `json:"fps"`
}

// ExtractionOptions controls frame sampling for one extraction job.
// Zero values fall back to the extractor's configured defaults.
type ExtractionOptions struct {
	// FrameRate is the sampling rate in frames per second.
	FrameRate float64
	// MaxFrames caps how many frames one job may produce.
	MaxFrames int
	// StartOffset skips this many seconds before sampling begins.
	StartOffset float64
}
