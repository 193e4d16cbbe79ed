package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/feed"
	"github.com/FunkyDevv/ITRACK-sub000/internal/metrics"
	"github.com/FunkyDevv/ITRACK-sub000/internal/queue"
)

// ProfileSource resolves the schedule context of an intern.
type ProfileSource interface {
	InternProfile(ctx context.Context, internID string) (InternProfile, error)
}

// Service is the attendance session engine. It is constructed once per
// process and holds no global state.
type Service struct {
	store    Store
	profiles ProfileSource
	broker   feed.Broker
	jobs     queue.Queue
	loc      *time.Location

	now   func() time.Time
	newID func() string
}

// NewService wires the engine. jobs may be nil when photo verification is
// disabled; loc is the calendar used for late/early and the daily gate.
func NewService(store Store, profiles ProfileSource, broker feed.Broker, jobs queue.Queue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    store,
		profiles: profiles,
		broker:   broker,
		jobs:     jobs,
		loc:      loc,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// TimeIn opens a new session for an intern. The event starts pending and
// needs teacher approval before it counts as the current session.
func (s *Service) TimeIn(ctx context.Context, internID string, loc Location, photoURL string) (string, error) {
	if strings.TrimSpace(internID) == "" {
		return "", ErrInternRequired
	}
	if err := checkPhotoURL(photoURL, ErrPhotoRequired); err != nil {
		return "", err
	}
	if strings.TrimSpace(loc.Address) == "" || loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return "", ErrLocationRequired
	}

	profile, err := s.profiles.InternProfile(ctx, internID)
	if err != nil {
		return "", apperr.Backend(err, "load intern profile")
	}
	if profile.TeacherID == "" {
		return "", ErrNoTeacher
	}

	events, err := s.store.ListByIntern(ctx, internID)
	if err != nil {
		return "", apperr.Backend(err, "load attendance")
	}
	now := s.now().In(s.loc)
	switch {
	case PendingSession(events) != nil:
		return "", s.conflict("time_in", ErrPendingExists)
	case CurrentSession(events) != nil:
		return "", s.conflict("time_in", ErrAlreadyClockedIn)
	case HasCompletedToday(events, now):
		return "", s.conflict("time_in", ErrCompletedToday)
	}

	evt := Event{
		ID:        s.newID(),
		InternID:  internID,
		TeacherID: profile.TeacherID,
		ClockIn:   now.UTC(),
		Location:  loc,
		PhotoURL:  photoURL,
		Status:    StatusPending,
		IsLate:    ComputeLate(ClockString(now), profile.ScheduledTimeIn),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.store.Insert(ctx, evt); err != nil {
		if errors.Is(err, ErrStale) {
			return "", s.conflict("time_in", ErrPendingExists)
		}
		return "", apperr.Backend(err, "record time-in")
	}

	metrics.Transitions.WithLabelValues("time_in").Inc()
	log.Ctx(ctx).Info().Str("event_id", evt.ID).Str("intern_id", internID).Bool("late", evt.IsLate).Msg("time-in recorded")
	s.notify(ctx, evt, "time_in")
	s.enqueueVerification(ctx, evt.ID)
	return evt.ID, nil
}

// TimeOut closes the approved open session eventID. The event returns to
// pending; a time-out never approves itself.
func (s *Service) TimeOut(ctx context.Context, eventID, photoURL string) error {
	if err := checkPhotoURL(photoURL, ErrTimeOutPhotoRequired); err != nil {
		return err
	}
	evt, err := s.load(ctx, eventID)
	if err != nil {
		return err
	}
	if !isCurrent(evt) {
		return s.conflict("time_out", ErrNoOpenSession)
	}

	profile, err := s.profiles.InternProfile(ctx, evt.InternID)
	if err != nil {
		return apperr.Backend(err, "load intern profile")
	}
	now := s.now().In(s.loc)
	closing := Closing{
		ClockOut:        now.UTC(),
		TimeOutPhotoURL: photoURL,
		IsEarly:         ComputeEarly(ClockString(now), profile.ScheduledTimeOut),
		UpdatedAt:       now.UTC(),
	}
	if err := s.store.CloseSession(ctx, eventID, closing); err != nil {
		if errors.Is(err, ErrStale) {
			return s.conflict("time_out", ErrNoOpenSession)
		}
		return apperr.Backend(err, "record time-out")
	}

	metrics.Transitions.WithLabelValues("time_out").Inc()
	log.Ctx(ctx).Info().Str("event_id", eventID).Str("intern_id", evt.InternID).Bool("early", closing.IsEarly).Msg("time-out recorded")
	s.notify(ctx, evt, "time_out")
	s.enqueueVerification(ctx, eventID)
	return nil
}

// Approve accepts a pending submission.
func (s *Service) Approve(ctx context.Context, eventID, approverID, reason string) error {
	return s.decide(ctx, eventID, StatusApproved, approverID, reason)
}

// Reject declines a pending submission.
func (s *Service) Reject(ctx context.Context, eventID, approverID, reason string) error {
	return s.decide(ctx, eventID, StatusRejected, approverID, reason)
}

func (s *Service) decide(ctx context.Context, eventID string, status Status, approverID, reason string) error {
	action := "approve"
	if status == StatusRejected {
		action = "reject"
	}
	if strings.TrimSpace(approverID) == "" {
		return ErrApproverRequired
	}
	evt, err := s.load(ctx, eventID)
	if err != nil {
		return err
	}
	if !isPending(evt) {
		return s.conflict(action, ErrNotPending)
	}
	d := Decision{Status: status, ApprovedBy: approverID, Reason: strings.TrimSpace(reason), At: s.now().UTC()}
	if err := s.store.Decide(ctx, eventID, d); err != nil {
		if errors.Is(err, ErrStale) {
			return s.conflict(action, ErrConcurrentUpdate)
		}
		return apperr.Backend(err, "record decision")
	}

	metrics.Transitions.WithLabelValues(action).Inc()
	log.Ctx(ctx).Info().Str("event_id", eventID).Str("approver_id", approverID).Str("status", string(status)).Msg("attendance decided")
	s.notify(ctx, evt, action)
	return nil
}

// Event returns a single record.
func (s *Service) Event(ctx context.Context, eventID string) (Event, error) {
	return s.load(ctx, eventID)
}

// GetCurrentSession returns the intern's approved open session, or nil.
func (s *Service) GetCurrentSession(ctx context.Context, internID string) (*Event, error) {
	events, err := s.store.ListByIntern(ctx, internID)
	if err != nil {
		return nil, apperr.Backend(err, "load attendance")
	}
	return CurrentSession(events), nil
}

// GetPendingSession returns the intern's submission awaiting approval, or nil.
func (s *Service) GetPendingSession(ctx context.Context, internID string) (*Event, error) {
	events, err := s.store.ListByIntern(ctx, internID)
	if err != nil {
		return nil, apperr.Backend(err, "load attendance")
	}
	return PendingSession(events), nil
}

// GetHistory returns every event of the intern, of any status, newest first.
func (s *Service) GetHistory(ctx context.Context, internID string) ([]Event, error) {
	events, err := s.store.ListByIntern(ctx, internID)
	if err != nil {
		return nil, apperr.Backend(err, "load attendance")
	}
	return SortNewestFirst(events), nil
}

// TeacherEvents returns every event assigned to a teacher, newest first.
func (s *Service) TeacherEvents(ctx context.Context, teacherID string) ([]Event, error) {
	events, err := s.store.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, apperr.Backend(err, "load attendance")
	}
	return SortNewestFirst(events), nil
}

// InternTeacher returns the teacher assigned to an intern.
func (s *Service) InternTeacher(ctx context.Context, internID string) (string, error) {
	profile, err := s.profiles.InternProfile(ctx, internID)
	if err != nil {
		return "", apperr.Backend(err, "load intern profile")
	}
	return profile.TeacherID, nil
}

// RecordPhotoScore stores the advisory face-detection score of an event.
func (s *Service) RecordPhotoScore(ctx context.Context, eventID string, score float64) error {
	if err := s.store.SetPhotoScore(ctx, eventID, score); err != nil {
		return apperr.Backend(err, "record photo score")
	}
	return nil
}

func (s *Service) load(ctx context.Context, eventID string) (Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return Event{}, ErrEventNotFound
	}
	evt, err := s.store.Get(ctx, eventID)
	if err != nil {
		return Event{}, apperr.Backend(err, "load attendance record")
	}
	return evt, nil
}

func (s *Service) conflict(action string, err error) error {
	metrics.Conflicts.WithLabelValues(action).Inc()
	return err
}

// notify publishes the change for live subscribers. The write already
// happened, so a failure here is only logged.
func (s *Service) notify(ctx context.Context, evt Event, action string) {
	if s.broker == nil {
		return
	}
	c := feed.Change{EventID: evt.ID, InternID: evt.InternID, TeacherID: evt.TeacherID, Action: action, At: s.now().UTC()}
	for _, topic := range []string{feed.InternTopic(evt.InternID), feed.TeacherTopic(evt.TeacherID)} {
		if err := s.broker.Publish(ctx, topic, c); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("change notification failed")
		}
	}
}

func (s *Service) enqueueVerification(ctx context.Context, eventID string) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Publish(ctx, queue.Message{Type: queue.TypeVerifyPhoto, Body: []byte(eventID)}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("queue publish failed")
	}
}

// checkPhotoURL rejects missing photos and embedded data URIs, which would
// put the image payload into the database.
func checkPhotoURL(u string, missing error) error {
	u = strings.TrimSpace(u)
	if u == "" {
		return missing
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return ErrEmbeddedPhoto
	}
	return nil
}
