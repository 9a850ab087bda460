// Package fetch issues single upstream tile GETs and classifies the outcome.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosmozoom/tilegate/internal/core/observability"
)

// OutcomeKind is the terminal state of one upstream fetch.
type OutcomeKind string

const (
	Success       OutcomeKind = "success"
	NotFound      OutcomeKind = "not_found"
	UpstreamError OutcomeKind = "upstream_error"
	NetworkError  OutcomeKind = "network_error"
	Timeout       OutcomeKind = "timeout"
)

type Outcome struct {
	Kind   OutcomeKind
	Status int
	Bytes  []byte
	Err    error
}

// Interface is the fetch capability consumed by the HTTP surface; tests
// substitute a stub.
type Interface interface {
	Fetch(ctx context.Context, url string, timeout time.Duration, source string) Outcome
}

type Fetcher struct {
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter // nil means unlimited
}

var _ Interface = (*Fetcher)(nil)

// New builds a fetcher. rps > 0 enables a global upstream rate limit shared
// by all bodies, so a tile storm cannot hammer the NASA endpoints.
func New(logger *slog.Logger, client *http.Client, rps float64) *Fetcher {
	var lim *rate.Limiter
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Fetcher{logger: logger, client: client, limiter: lim}
}

// Fetch issues exactly one GET with a bounded deadline. No retries: a single
// upstream failure is surfaced immediately, never masked.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration, source string) Outcome {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return classifyErr(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Kind: NetworkError, Err: fmt.Errorf("build request: %w", err)}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		out := classifyErr(err)
		f.logger.Warn("upstream fetch failed",
			"url", url, "kind", string(out.Kind), "err", err)
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency(source, dur.Seconds())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
		return Outcome{Kind: NotFound, Status: resp.StatusCode}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyErr(fmt.Errorf("read body: %w", err))
		}
		f.logger.Debug("upstream fetch done",
			"url", url, "status", resp.StatusCode,
			"bytes", len(b), "duration", dur.String())
		return Outcome{Kind: Success, Status: resp.StatusCode, Bytes: b}

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		f.logger.Warn("upstream error status",
			"url", url, "status", resp.StatusCode, "body", string(b))
		return Outcome{
			Kind:   UpstreamError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}
}

func classifyErr(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: Timeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Outcome{Kind: Timeout, Err: err}
	}
	return Outcome{Kind: NetworkError, Err: err}
}
