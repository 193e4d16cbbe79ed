package photo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/metrics"
)

// ProviderPlaceholder names the degraded result.
const ProviderPlaceholder = "placeholder"

// ErrExhausted is returned when every provider failed and no placeholder is
// configured.
var ErrExhausted = apperr.New(apperr.KindUploadFailure, "upload failed, try again")

var errUnusableURL = errors.New("provider returned an unusable url")

// Provider stores one photo and returns its public URL.
type Provider interface {
	Name() string
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// Result is what callers persist as the photo URL.
type Result struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
	Degraded bool   `json:"degraded"`
}

// Options bounds the pipeline.
type Options struct {
	Timeout        time.Duration
	MaxBytes       int64
	MaxDimension   int
	PlaceholderURL string
}

type guarded struct {
	Provider
	cb *gobreaker.CircuitBreaker
}

// Pipeline tries providers in the order given and degrades to the
// placeholder URL when all of them fail.
type Pipeline struct {
	providers []guarded
	opts      Options
}

// NewPipeline wraps each provider in its own circuit breaker.
func NewPipeline(opts Options, providers ...Provider) *Pipeline {
	p := &Pipeline{opts: opts}
	for _, prov := range providers {
		settings := gobreaker.Settings{
			Name:        prov.Name(),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}
		p.providers = append(p.providers, guarded{Provider: prov, cb: gobreaker.NewCircuitBreaker(settings)})
	}
	return p
}

// Providers lists provider names in attempt order.
func (p *Pipeline) Providers() []string {
	names := make([]string, 0, len(p.providers))
	for _, g := range p.providers {
		names = append(names, g.Name())
	}
	return names
}

// Upload compresses raw and stores it with the first provider that returns
// a usable URL.
func (p *Pipeline) Upload(ctx context.Context, raw []byte) (Result, error) {
	data, err := Compress(raw, p.opts.MaxDimension)
	if err != nil {
		return Result{}, err
	}
	if p.opts.MaxBytes > 0 && int64(len(data)) > p.opts.MaxBytes {
		return Result{}, ErrTooLarge
	}
	filename := fmt.Sprintf("attendance_%s.jpg", uuid.NewString())

	for _, g := range p.providers {
		u, err := p.try(ctx, g, data, filename)
		if err == nil {
			metrics.UploadAttempts.WithLabelValues(g.Name(), "ok").Inc()
			return Result{URL: u, Provider: g.Name()}, nil
		}
		if ctx.Err() != nil {
			return Result{}, apperr.Wrap(ctx.Err(), apperr.KindUploadFailure, ErrExhausted.Message)
		}
		metrics.UploadAttempts.WithLabelValues(g.Name(), outcome(err)).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("provider", g.Name()).Msg("photo provider failed")
	}

	if p.opts.PlaceholderURL == "" {
		return Result{}, ErrExhausted
	}
	log.Ctx(ctx).Error().Msg("all photo providers failed, using placeholder")
	return Result{URL: p.opts.PlaceholderURL, Provider: ProviderPlaceholder, Degraded: true}, nil
}

func (p *Pipeline) try(ctx context.Context, g guarded, data []byte, filename string) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if p.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
			defer cancel()
		}
		u, err := g.Upload(callCtx, data, filename)
		if err != nil {
			return nil, err
		}
		if !UsableURL(u) {
			return nil, fmt.Errorf("%w: %q", errUnusableURL, truncate(u))
		}
		return u, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	case errors.Is(err, errUnusableURL):
		return "rejected"
	default:
		return "error"
	}
}

// UsableURL reports whether u is an absolute http(s) URL. Embedded data and
// blob URLs are never usable.
func UsableURL(u string) bool {
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
