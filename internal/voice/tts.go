// Package voice turns message text into hosted mp3 files.
package voice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
)

const (
	// MaxTextLength is the longest text the upstream accepts in one request.
	MaxTextLength = 200
	voiceDir      = "voices"
)

var (
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrTextTooLong = fmt.Errorf("text longer than %d characters", MaxTextLength)
	ErrGender      = errors.New("voice gender must be male or female")
)

type Config struct {
	Endpoint  string
	Language  string
	UserAgent string
	Timeout   time.Duration
	UploadDir string
	BaseURL   string
}

// TTS fetches speech from a translate_tts style endpoint and stores it under
// UploadDir/voices, served at /uploads/voices.
type TTS struct {
	cfg    Config
	client *fasthttp.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
}

func New(cfg Config) *TTS {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	name := "tts"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerState(to))
		},
	})

	return &TTS{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:         cfg.UserAgent,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		cb: cb,
	}
}

// Synthesize converts text and returns the public URL of the audio file.
func (t *TTS) Synthesize(ctx context.Context, text, gender string) (string, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return "", ErrEmptyText
	case utf8.RuneCountInString(text) > MaxTextLength:
		return "", ErrTextTooLong
	case gender != "male" && gender != "female":
		return "", ErrGender
	}

	audio, err := t.cb.Execute(func() ([]byte, error) {
		return t.fetch(ctx, text)
	})
	if err != nil {
		return "", err
	}

	dir := filepath.Join(t.cfg.UploadDir, voiceDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	filename := "voice_" + uuid.NewString() + ".mp3"
	if err := os.WriteFile(filepath.Join(dir, filename), audio, 0644); err != nil {
		return "", err
	}
	return BuildURL(t.cfg.BaseURL, filename), nil
}

func (t *TTS) fetch(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", t.cfg.Language)
	q.Set("client", "tw-ob")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.cfg.Endpoint + "?" + q.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	if t.cfg.UserAgent != "" {
		req.Header.SetUserAgent(t.cfg.UserAgent)
	}

	timeout := t.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	if err := t.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("tts returned status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, errors.New("tts returned no audio")
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// BuildURL returns the public URL of a stored voice file.
func BuildURL(baseURL, filename string) string {
	if filename == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/uploads/" + voiceDir + "/" + filename
}

func breakerState(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
