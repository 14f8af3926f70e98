// Package chrome launches the single long-lived Chromium process the studio
// drives. Unlike a render-on-demand pool, the studio needs exactly one
// browser with its CDP endpoint reachable externally, so the Page Registry
// and any operator tooling can open the same websocket.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	// DesktopWidth and DesktopHeight size the window chromedp launches with.
	DesktopWidth  = 1920
	DesktopHeight = 1080

	debugHost            = "127.0.0.1"
	wsEndpointAttempts   = 20
	wsEndpointRetryDelay = 250 * time.Millisecond
)

// LaunchConfig configures the studio's single browser process.
type LaunchConfig struct {
	Headless  bool
	NoSandbox bool
	DebugPort int
}

func buildAllocatorOptions(cfg LaunchConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(DesktopWidth, DesktopHeight),
		chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", cfg.DebugPort)),
		chromedp.Flag("remote-debugging-address", debugHost),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	opts = append(opts, chromedp.DisableGPU)

	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	return opts
}

// Launch starts Chrome with CDP exposed on cfg.DebugPort. browserCtx is the
// context every registry page is created under; cancel tears down both the
// browser context and its allocator. wsEndpoint is the external websocket
// debugger URL reported by GET /.
func Launch(ctx context.Context, cfg LaunchConfig, logger *zap.Logger) (browserCtx context.Context, cancel context.CancelFunc, wsEndpoint string, err error) {
	opts := buildAllocatorOptions(cfg)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, "", fmt.Errorf("chrome: launch: %w", err)
	}

	baseURL := fmt.Sprintf("http://%s:%d", debugHost, cfg.DebugPort)
	endpoint, err := fetchWSEndpoint(baseURL, wsEndpointAttempts, wsEndpointRetryDelay)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, "", fmt.Errorf("chrome: fetch websocket endpoint: %w", err)
	}

	logger.Info("chrome: launched",
		zap.Int("debug_port", cfg.DebugPort),
		zap.String("ws_endpoint", endpoint),
	)

	return browserCtx, func() { browserCancel(); allocCancel() }, endpoint, nil
}

type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// fetchWSEndpoint polls baseURL+"/json/version" for the browser-level
// websocket debugger URL, retrying because Chrome's debug HTTP server isn't
// always accepting connections the instant the process forks.
func fetchWSEndpoint(baseURL string, attempts int, delay time.Duration) (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	url := baseURL + "/json/version"

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(delay)
		}

		resp, err := client.Get(url)
		if err != nil {
			lastErr = err
			continue
		}

		var info versionInfo
		decodeErr := json.NewDecoder(resp.Body).Decode(&info)
		resp.Body.Close()
		if decodeErr != nil {
			lastErr = decodeErr
			continue
		}
		if info.WebSocketDebuggerURL == "" {
			lastErr = fmt.Errorf("chrome: /json/version returned no websocket debugger url")
			continue
		}

		return info.WebSocketDebuggerURL, nil
	}

	return "", lastErr
}
