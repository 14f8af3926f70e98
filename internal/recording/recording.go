// Package recording implements the per-page screencast lifecycle: start and
// stop a CDP screencast session, buffer frames, correlate the console-log
// window, invoke an external encoder, and extract key frames.
package recording

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/apperr"
	"github.com/user/browserstudio/internal/types"
)

const filePerm = 0o644
const dirPerm = 0o755
const screencastFPS = 30
const screencastFormat = "webm"

// Page is the subset of a registered page entry the Recording Engine needs.
// Implementations own the locking around the mutable recording state; every
// method here must be safe for concurrent use.
type Page interface {
	Name() string
	TargetID() target.ID
	Context() context.Context

	// BeginRecording atomically activates recording if not already active,
	// storing opts on the new state. ok is false on a 409 conflict.
	BeginRecording(opts types.RecordingOptions) (ok bool)
	// AppendFrame appends a decoded frame to the active recording buffer.
	// It is a no-op if recording is not active (tolerates late acks after stop).
	AppendFrame(data []byte)
	// EndRecording atomically deactivates recording and returns a snapshot
	// of the state as it stood at the moment of deactivation. ok is false
	// if no recording was active.
	EndRecording() (state types.RecordingState, ok bool)
	// ConsoleLogsFrom returns a copy of the console log slice from idx to
	// the current end.
	ConsoleLogsFrom(idx int) []types.ConsoleLogEntry
	// FetchPageInfo retrieves best-effort URL/title for the page.
	FetchPageInfo(ctx context.Context) types.PageInfo
}

// EncodeOptions configures a single encode invocation.
type EncodeOptions struct {
	FPS        int
	Format     string
	OutputPath string
}

// Encoder turns an ordered sequence of JPEG frames into a video file at
// opts.OutputPath. Implementations that cannot produce a real video (no
// ffmpeg on PATH) fall back per spec.md §7 and return a path to a raw frame
// sequence directory instead.
type Encoder interface {
	Encode(ctx context.Context, frames [][]byte, opts EncodeOptions) (outputPath string, err error)
}

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func sanitizeName(name string) string {
	return sanitizePattern.ReplaceAllString(name, "_")
}

// Engine owns the recordings output directory and the external encoder, and
// tracks the CDP sessions it opened per page so Stop can detach them.
type Engine struct {
	logger        *zap.Logger
	recordingsDir string
	encoder       Encoder

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// New creates a Recording Engine. recordingsDir is created lazily by the
// first Stop.
func New(logger *zap.Logger, recordingsDir string, encoder Encoder) *Engine {
	return &Engine{
		logger:        logger,
		recordingsDir: recordingsDir,
		encoder:       encoder,
		sessions:      make(map[string]context.CancelFunc),
	}
}

// Start opens a new CDP session on page's target, subscribes to screencast
// frames, and issues Page.startScreencast. Returns a 409 conflict error
// if a recording is already active for this page.
func (e *Engine) Start(ctx context.Context, p Page, opts types.RecordingOptions) error {
	opts.ApplyDefaults()

	if !p.BeginRecording(opts) {
		return apperr.AlreadyRecording()
	}

	sessionCtx, cancel := chromedp.NewContext(p.Context(), chromedp.WithTargetID(p.TargetID()))

	chromedp.ListenTarget(sessionCtx, func(ev interface{}) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go func() {
			_ = page.ScreencastFrameAck(frame.SessionID).Do(sessionCtx)
		}()
		data, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			return
		}
		p.AppendFrame(data)
	})

	startCmd := page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(int64(opts.Quality)).
		WithMaxWidth(int64(opts.MaxWidth)).
		WithMaxHeight(int64(opts.MaxHeight)).
		WithEveryNthFrame(int64(opts.EveryNthFrame))

	if err := chromedp.Run(sessionCtx, startCmd); err != nil {
		cancel()
		p.EndRecording()
		return fmt.Errorf("recording: start screencast: %w", err)
	}

	e.mu.Lock()
	e.sessions[p.Name()] = cancel
	e.mu.Unlock()

	return nil
}

// Stop ends an active recording, encodes the buffered frames, extracts key
// frames, and emits a summary document. Returns a 409 conflict error if
// no recording was active.
func (e *Engine) Stop(ctx context.Context, p Page) (types.StopResult, error) {
	state, ok := p.EndRecording()
	if !ok {
		return types.StopResult{}, apperr.NotRecording()
	}

	stoppedAt := time.Now()
	durationMs := stoppedAt.Sub(state.StartedAt).Milliseconds()

	e.mu.Lock()
	cancel, hadSession := e.sessions[p.Name()]
	delete(e.sessions, p.Name())
	e.mu.Unlock()

	if hadSession {
		sessionCtx, sessionCancel := chromedp.NewContext(p.Context(), chromedp.WithTargetID(p.TargetID()))
		_ = chromedp.Run(sessionCtx, page.StopScreencast())
		sessionCancel()
		cancel()
	}

	var consoleLogs []types.ConsoleLogEntry
	if state.Options.CaptureConsoleLogs {
		consoleLogs = p.ConsoleLogsFrom(state.RecordingStartIndex)
	}

	if err := os.MkdirAll(e.recordingsDir, dirPerm); err != nil {
		e.logger.Warn("recording: create recordings dir", zap.Error(err))
	}

	outputPath := filepath.Join(e.recordingsDir, fmt.Sprintf("%s-%d.%s", sanitizeName(p.Name()), state.StartedAt.UnixMilli(), screencastFormat))

	videoPath := outputPath
	if len(state.Frames) > 0 {
		encoded, err := e.encoder.Encode(ctx, state.Frames, EncodeOptions{FPS: screencastFPS, Format: screencastFormat, OutputPath: outputPath})
		if err != nil {
			e.logger.Warn("recording: encode failed", zap.String("page", p.Name()), zap.Error(err))
		} else {
			videoPath = encoded
		}
	}

	var keyFramePaths []string
	if state.Options.ExtractKeyFrames && len(state.Frames) > 0 {
		keyFramePaths = e.extractKeyFrames(outputPath, state.Frames, state.Options.KeyFrameCount)
	}

	pageInfo := p.FetchPageInfo(ctx)

	result := types.StopResult{
		VideoPath:     videoPath,
		DurationMs:    durationMs,
		FrameCount:    state.FrameCount,
		ConsoleLogs:   consoleLogs,
		KeyFramePaths: keyFramePaths,
	}

	keyFrames := make([]types.KeyFrame, len(keyFramePaths))
	for i, path := range keyFramePaths {
		keyFrames[i] = types.KeyFrame{Index: i, Path: path}
	}

	summary := types.RecordingSummary{
		Recording: types.RecordingSummaryInfo{
			VideoPath:  videoPath,
			DurationMs: durationMs,
			FrameCount: state.FrameCount,
			StartedAt:  state.StartedAt,
			StoppedAt:  stoppedAt,
		},
		ConsoleLogs: consoleLogs,
		KeyFrames:   keyFrames,
		Page:        pageInfo,
	}

	summaryPath := outputPath + "-summary.json"
	if err := writeSummary(summaryPath, summary); err != nil {
		e.logger.Warn("recording: write summary failed", zap.String("page", p.Name()), zap.Error(err))
	} else {
		result.SummaryPath = summaryPath
	}

	return result, nil
}

// Abort best-effort tears down an in-progress recording without producing
// output, for the page-close and forced-shutdown paths.
func (e *Engine) Abort(p Page) {
	if _, ok := p.EndRecording(); !ok {
		return
	}

	e.mu.Lock()
	cancel, hadSession := e.sessions[p.Name()]
	delete(e.sessions, p.Name())
	e.mu.Unlock()

	if hadSession {
		sessionCtx, sessionCancel := chromedp.NewContext(p.Context(), chromedp.WithTargetID(p.TargetID()))
		_ = chromedp.Run(sessionCtx, page.StopScreencast())
		sessionCancel()
		cancel()
	}
}

func (e *Engine) extractKeyFrames(outputPath string, frames [][]byte, count int) []string {
	if count <= 0 || count > len(frames) {
		count = len(frames)
	}
	step := len(frames) / count
	if step == 0 {
		step = 1
	}

	base := outputPath
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		idx := i * step
		if idx >= len(frames) {
			break
		}
		path := fmt.Sprintf("%s-keyframe-%d.jpg", base, i+1)
		if err := os.WriteFile(path, frames[idx], filePerm); err != nil {
			e.logger.Warn("recording: write key frame failed", zap.Error(err))
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func writeSummary(path string, summary types.RecordingSummary) error {
	if summary.ConsoleLogs == nil {
		summary.ConsoleLogs = []types.ConsoleLogEntry{}
	}
	if summary.KeyFrames == nil {
		summary.KeyFrames = []types.KeyFrame{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return os.WriteFile(path, data, filePerm)
}
