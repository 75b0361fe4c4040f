package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/governor"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// webuiBackend posts the audio file to a Gradio endpoint on a configured
// base URL (spec.md §4.4 "Remote WebUI (WhisperX-WebUI)"). Grounded on
// internal/birdweather/birdweather.go's *http.Client-with-timeout shape and
// its network-error classification.
type webuiBackend struct {
	cfg        config.WebUIConfig
	httpClient *http.Client
	limiter    *governor.FixedRateLimiter
	log        logging.Logger
}

func newWebUIBackend(cfg config.TranscriptionConfig, govCfg config.GovernorConfig, log logging.Logger) *webuiBackend {
	timeout := time.Duration(cfg.WebUI.TimeoutSec * float64(time.Second))
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	interval := time.Duration(govCfg.RemoteCallIntervalMS) * time.Millisecond
	return &webuiBackend{
		cfg:        cfg.WebUI,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    governor.NewFixedRateLimiter(interval),
		log:        log.Module("transcribe.webui"),
	}
}

// webuiSegment mirrors the JSON segment shape the Gradio endpoint may
// return instead of a flat transcript string.
type webuiSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type webuiResponse struct {
	Text     string         `json:"text"`
	Segments []webuiSegment `json:"segments"`
}

// Transcribe implements the WebUI failure taxonomy spec.md §4.4 prescribes:
// a missing base_url and HTTP/transport/decoding failures are returned as
// errors prefixed `webui_error:`, which the caller records as-is as the skip
// reason. An empty-but-non-null result is not an error: it returns an
// empty Result with a nil error, which the caller records as
// transcription_failed.
func (b *webuiBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if b.cfg.BaseURL == "" {
		return Result{}, errors.New("webui_error:WebUI base_url is not configured")
	}

	path := b.cfg.TranscribePath
	if path == "" {
		path = "/_transcribe_file"
	}
	endpoint := strings.TrimRight(b.cfg.BaseURL, "/") + path

	body, contentType, err := buildMultipartRequest(audioPath, b.cfg.Options)
	if err != nil {
		return Result{}, fmt.Errorf("webui_error:%v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("webui_error:%v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
	if b.cfg.Username != "" {
		req.SetBasicAuth(b.cfg.Username, b.cfg.Password)
	}
	for k, v := range b.cfg.Headers {
		req.Header.Set(k, v)
	}

	b.limiter.Wait()

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("webui_error:%v", classifyNetworkError(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("webui_error:reading response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("webui_error:HTTP %d: %s", resp.StatusCode, string(payload))
	}

	var decoded webuiResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{}, fmt.Errorf("webui_error:decoding response: %w", err)
	}

	text := decoded.Text
	var segments []Segment
	if len(decoded.Segments) > 0 {
		segments = make([]Segment, 0, len(decoded.Segments))
		for _, s := range decoded.Segments {
			segments = append(segments, Segment{Text: s.Text, StartSec: s.Start, EndSec: s.End})
		}
		if text == "" {
			text = RenderSegments(segments)
		}
	}

	if text == "" {
		// Non-null but empty result is treated as failure (spec.md §4.4).
		return Result{}, nil
	}

	return Result{
		Text:     text,
		Duration: time.Since(start),
		Segments: segments,
		Model:    "webui",
	}, nil
}

func buildMultipartRequest(audioPath string, options map[string]any) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	// Scalars pass through verbatim; dicts/lists are JSON-encoded; nulls
	// are dropped entirely (spec.md §6 "nested values serialised as JSON
	// strings, null values dropped").
	for key, value := range options {
		field, ok, err := encodeOptionField(value)
		if err != nil {
			return nil, "", fmt.Errorf("encoding option %q: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := w.WriteField(key, field); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// encodeOptionField implements the per-value serialisation rule of
// spec.md §6: scalars (string/bool/number) are passed verbatim, nested
// values (maps/slices) are JSON-encoded, and nulls are dropped so the
// field never reaches the wire.
func encodeOptionField(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case bool:
		if v {
			return "true", true, nil
		}
		return "false", true, nil
	case float64, float32, int, int32, int64:
		return fmt.Sprintf("%v", v), true, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false, err
		}
		return string(encoded), true, nil
	}
}

// classifyNetworkError mirrors handleNetworkError from
// internal/birdweather/birdweather.go: distinguish timeouts and DNS
// failures from generic network errors for a more actionable skip detail.
func classifyNetworkError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("request timed out: %w", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &dnsErr) {
			return fmt.Errorf("DNS resolution failed: %w", err)
		}
	}
	return fmt.Errorf("network error: %w", err)
}

func (b *webuiBackend) Label() string { return "webui" }
