package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/apperr"
	"github.com/user/browserstudio/internal/recording"
	"github.com/user/browserstudio/internal/registry"
	"github.com/user/browserstudio/internal/types"
)

// pageHandler implements every /pages* route. It holds the Registry and
// Recording Engine the routes are built against, mirroring the teacher's
// per-concern handler structs (RenderHandler, RobotsHandler, ...).
type pageHandler struct {
	registry   *registry.Registry
	recording  *recording.Engine
	logger     *zap.Logger
	wsEndpoint string

	mu      sync.Mutex
	results map[string]types.StopResult
}

func newPageHandler(reg *registry.Registry, rec *recording.Engine, logger *zap.Logger, wsEndpoint string) *pageHandler {
	return &pageHandler{
		registry:   reg,
		recording:  rec,
		logger:     logger,
		wsEndpoint: wsEndpoint,
		results:    make(map[string]types.StopResult),
	}
}

// wsEndpointResponse is the GET / response body.
type wsEndpointResponse struct {
	WSEndpoint string `json:"wsEndpoint"`
}

func (h *pageHandler) wsEndpointHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wsEndpointResponse{WSEndpoint: h.wsEndpoint})
}

// listResponse is the GET /pages response body.
type listResponse struct {
	Pages []string `json:"pages"`
}

func (h *pageHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Pages: h.registry.List()})
}

// createRequest is the POST /pages request body.
type createRequest struct {
	Name     string `json:"name"`
	Viewport *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"viewport"`
}

// createResponse is the POST /pages response body.
type createResponse struct {
	WSEndpoint string `json:"wsEndpoint"`
	Name       string `json:"name"`
	TargetID   string `json:"targetId"`
}

func (h *pageHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidName("request body must be valid JSON"))
		return
	}

	var viewport *registry.Viewport
	if req.Viewport != nil {
		viewport = &registry.Viewport{Width: req.Viewport.Width, Height: req.Viewport.Height}
	}

	entry, err := h.registry.Create(req.Name, viewport)
	if err != nil {
		writeError(w, err)
		return
	}

	meta := entry.Meta()
	writeJSON(w, http.StatusOK, createResponse{
		WSEndpoint: h.wsEndpoint,
		Name:       meta.Name,
		TargetID:   meta.TargetID,
	})
}

// successResponse is the common {success:true, ...} shape.
type successResponse struct {
	Success bool `json:"success"`
}

func (h *pageHandler) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.registry.Remove(name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// consoleLogsResponse is the GET /pages/:name/console response body.
type consoleLogsResponse struct {
	Logs  []types.ConsoleLogEntry `json:"logs"`
	Count int                     `json:"count"`
}

func (h *pageHandler) consoleLogs(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}
	logs := entry.ConsoleLogs()
	writeJSON(w, http.StatusOK, consoleLogsResponse{Logs: logs, Count: len(logs)})
}

// clearConsoleResponse is the DELETE /pages/:name/console response body.
type clearConsoleResponse struct {
	Success bool `json:"success"`
	Cleared int  `json:"cleared"`
}

func (h *pageHandler) clearConsoleLogs(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}
	cleared := entry.ClearConsoleLogs()
	writeJSON(w, http.StatusOK, clearConsoleResponse{Success: true, Cleared: cleared})
}

// recordingStatusResponse is the GET /pages/:name/recording/status response body.
type recordingStatusResponse struct {
	IsRecording     bool       `json:"isRecording"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FrameCount      *int       `json:"frameCount,omitempty"`
	ConsoleLogCount *int       `json:"consoleLogCount,omitempty"`
}

func (h *pageHandler) recordingStatus(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}

	isActive, startedAt, frameCount, consoleLogCount := entry.RecordingStatus()
	resp := recordingStatusResponse{IsRecording: isActive}
	if isActive {
		resp.StartedAt = &startedAt
		resp.FrameCount = &frameCount
		resp.ConsoleLogCount = &consoleLogCount
	}
	writeJSON(w, http.StatusOK, resp)
}

// recordingStartRequest is the POST /pages/:name/recording/start request body.
type recordingStartRequest struct {
	Options *types.RecordingOptions `json:"options"`
}

// recordingActionResponse is the common {success, error?} shape.
type recordingActionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *pageHandler) recordingStart(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}

	var req recordingStartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.InvalidOptions("request body must be valid JSON"))
			return
		}
	}

	opts := types.DefaultRecordingOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	if err := h.recording.Start(r.Context(), entry, opts); err != nil {
		status := apperr.GetHTTPStatus(err)
		if status == http.StatusConflict {
			writeJSON(w, status, recordingActionResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, recordingActionResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, recordingActionResponse{Success: true})
}

// recordingStopResponse is the POST /pages/:name/recording/stop response body.
type recordingStopResponse struct {
	Success       bool                    `json:"success"`
	VideoPath     string                  `json:"videoPath,omitempty"`
	DurationMs    int64                   `json:"durationMs,omitempty"`
	FrameCount    int                     `json:"frameCount,omitempty"`
	ConsoleLogs   []types.ConsoleLogEntry `json:"consoleLogs,omitempty"`
	KeyFramePaths []string                `json:"keyFramePaths,omitempty"`
	SummaryPath   string                  `json:"summaryPath,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

func (h *pageHandler) recordingStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}

	result, err := h.recording.Stop(r.Context(), entry)
	if err != nil {
		status := apperr.GetHTTPStatus(err)
		if status == http.StatusConflict {
			writeJSON(w, status, recordingStopResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, recordingStopResponse{Success: false, Error: err.Error()})
		return
	}

	h.mu.Lock()
	h.results[name] = result
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, recordingStopResponse{
		Success:       true,
		VideoPath:     result.VideoPath,
		DurationMs:    result.DurationMs,
		FrameCount:    result.FrameCount,
		ConsoleLogs:   result.ConsoleLogs,
		KeyFramePaths: result.KeyFramePaths,
		SummaryPath:   result.SummaryPath,
	})
}

// videoResponse is the GET /pages/:name/video response body.
type videoResponse struct {
	VideoPath string `json:"videoPath,omitempty"`
	Pending   bool   `json:"pending"`
	Error     string `json:"error,omitempty"`
}

func (h *pageHandler) video(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, ok := h.getPage(w, r)
	if !ok {
		return
	}

	if isActive, _, _, _ := entry.RecordingStatus(); isActive {
		writeJSON(w, http.StatusOK, videoResponse{Pending: true})
		return
	}

	h.mu.Lock()
	result, found := h.results[name]
	h.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusOK, videoResponse{Pending: false})
		return
	}

	writeJSON(w, http.StatusOK, videoResponse{VideoPath: result.VideoPath, Pending: false})
}

// getPage resolves name from the URL and writes a 404 on failure.
func (h *pageHandler) getPage(w http.ResponseWriter, r *http.Request) (*registry.PageEntry, bool) {
	name := chi.URLParam(r, "name")
	entry, ok := h.registry.Get(name)
	if !ok {
		writeError(w, apperr.NewNotFoundError("page \""+name+"\" not found"))
		return nil, false
	}
	return entry, true
}

// errorResponse is the shared {error:{code,message}} error body.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.GetHTTPStatus(err)
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: apperr.GetCode(err), Message: err.Error()}})
}
