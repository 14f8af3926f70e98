package types

import "time"

// RecordingOptions configures a screencast capture.
type RecordingOptions struct {
	MaxWidth           int  `json:"max_width"`
	MaxHeight          int  `json:"max_height"`
	Quality            int  `json:"quality"`
	EveryNthFrame      int  `json:"every_nth_frame"`
	CaptureConsoleLogs bool `json:"capture_console_logs"`
	ExtractKeyFrames   bool `json:"extract_key_frames"`
	KeyFrameCount      int  `json:"key_frame_count"`
}

// DefaultRecordingOptions returns the spec-mandated defaults.
func DefaultRecordingOptions() RecordingOptions {
	return RecordingOptions{
		MaxWidth:           1280,
		MaxHeight:          720,
		Quality:            80,
		EveryNthFrame:      1,
		CaptureConsoleLogs: true,
		ExtractKeyFrames:   true,
		KeyFrameCount:      5,
	}
}

// ApplyDefaults replaces zero or negative numeric fields with the spec
// defaults and caps Quality at 100. In-range numeric fields are left as
// given, and the boolean fields are never changed.
func (o *RecordingOptions) ApplyDefaults() {
	d := DefaultRecordingOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = d.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = d.MaxHeight
	}
	if o.Quality <= 0 {
		o.Quality = d.Quality
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	if o.EveryNthFrame <= 0 {
		o.EveryNthFrame = d.EveryNthFrame
	}
	if o.KeyFrameCount <= 0 {
		o.KeyFrameCount = d.KeyFrameCount
	}
}

// RecordingState is the mutable recording lifecycle state owned by a page
// entry. At most one RecordingState may be active per page.
type RecordingState struct {
	IsActive            bool
	StartedAt           time.Time
	FrameCount          int
	Frames              [][]byte
	Options             RecordingOptions
	OutputPath          string
	RecordingStartIndex int
}

// KeyFrame describes a frame persisted for non-video inspection.
type KeyFrame struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// PageInfo is best-effort page metadata captured at recording stop.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// RecordingSummary is the JSON document written alongside a stopped
// recording's video file.
type RecordingSummary struct {
	Recording   RecordingSummaryInfo `json:"recording"`
	ConsoleLogs []ConsoleLogEntry    `json:"consoleLogs"`
	KeyFrames   []KeyFrame           `json:"keyFrames"`
	Page        PageInfo             `json:"page"`
}

// RecordingSummaryInfo is the "recording" block of a RecordingSummary.
type RecordingSummaryInfo struct {
	VideoPath  string    `json:"videoPath"`
	DurationMs int64     `json:"durationMs"`
	FrameCount int       `json:"frameCount"`
	StartedAt  time.Time `json:"startedAt"`
	StoppedAt  time.Time `json:"stoppedAt"`
}

// StopResult is returned by the Recording Engine's Stop operation.
type StopResult struct {
	VideoPath     string
	DurationMs    int64
	FrameCount    int
	ConsoleLogs   []ConsoleLogEntry
	KeyFramePaths []string
	SummaryPath   string
}
