package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/faceclient"
	"github.com/FunkyDevv/ITRACK-sub000/internal/metrics"
	"github.com/FunkyDevv/ITRACK-sub000/internal/queue"
)

type eventScorer interface {
	Event(ctx context.Context, eventID string) (attendance.Event, error)
	RecordPhotoScore(ctx context.Context, eventID string, score float64) error
}

type detector interface {
	Detect(ctx context.Context, imageURL string) (*faceclient.Detection, error)
}

// processor scores the latest photo of an event. The score is advisory and
// never changes the event status.
type processor struct {
	events eventScorer
	face   detector
}

func (p *processor) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeVerifyPhoto {
		metrics.Verifications.WithLabelValues("skipped").Inc()
		return
	}
	id := string(msg.Body)
	logger := log.With().Str("event_id", id).Logger()

	evt, err := p.events.Event(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("fetch event failed")
		metrics.Verifications.WithLabelValues("error").Inc()
		return
	}

	photoURL := evt.PhotoURL
	if evt.TimeOutPhotoURL != "" {
		photoURL = evt.TimeOutPhotoURL
	}

	var score float64
	outcome := "scored"
	det, err := p.face.Detect(ctx, photoURL)
	switch {
	case errors.Is(err, faceclient.ErrNoFace):
		outcome = "no_face"
	case err != nil:
		logger.Warn().Err(err).Msg("face detection failed")
		metrics.Verifications.WithLabelValues("error").Inc()
		return
	default:
		score = det.Score
	}

	if err := p.events.RecordPhotoScore(ctx, id, score); err != nil {
		logger.Warn().Err(err).Msg("store photo score failed")
		metrics.Verifications.WithLabelValues("error").Inc()
		return
	}
	metrics.Verifications.WithLabelValues(outcome).Inc()
	logger.Info().Float64("score", score).Str("outcome", outcome).Msg("photo verified")
}
