package attendance

import (
	"context"
	"sync"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/feed"
)

// InternView is the full derived state of one intern, recomputed from a
// fresh read on every change.
type InternView struct {
	Current        *Event  `json:"current"`
	Pending        *Event  `json:"pending"`
	History        []Event `json:"history"`
	CompletedToday bool    `json:"completedToday"`
	Err            error   `json:"-"`
}

// TeacherView is the state a teacher dashboard renders.
type TeacherView struct {
	Events  []Event `json:"events"`
	Pending []Event `json:"pending"`
	Err     error   `json:"-"`
}

// Watch delivers a view on C right away and again after every change. The
// consumer must call Close on teardown; C is closed afterwards.
type Watch[T any] struct {
	C <-chan T

	sub  *feed.Subscription
	done chan struct{}
	once sync.Once
}

// Close stops the watch.
func (w *Watch[T]) Close() {
	w.once.Do(func() {
		close(w.done)
		w.sub.Close()
	})
}

// SubscribeToInternAttendance watches one intern's sessions.
func (s *Service) SubscribeToInternAttendance(ctx context.Context, internID string) (*Watch[InternView], error) {
	sub, err := s.broker.Subscribe(ctx, feed.InternTopic(internID))
	if err != nil {
		return nil, apperr.Backend(err, "subscribe to attendance")
	}
	return startWatch(ctx, sub, func(ctx context.Context) InternView {
		return s.internView(ctx, internID)
	}), nil
}

// SubscribeToTeacherAttendance watches every event assigned to a teacher.
func (s *Service) SubscribeToTeacherAttendance(ctx context.Context, teacherID string) (*Watch[TeacherView], error) {
	sub, err := s.broker.Subscribe(ctx, feed.TeacherTopic(teacherID))
	if err != nil {
		return nil, apperr.Backend(err, "subscribe to attendance")
	}
	return startWatch(ctx, sub, func(ctx context.Context) TeacherView {
		return s.teacherView(ctx, teacherID)
	}), nil
}

func (s *Service) internView(ctx context.Context, internID string) InternView {
	events, err := s.store.ListByIntern(ctx, internID)
	if err != nil {
		return InternView{Err: apperr.Backend(err, "load attendance")}
	}
	history := SortNewestFirst(events)
	return InternView{
		Current:        CurrentSession(history),
		Pending:        PendingSession(history),
		History:        history,
		CompletedToday: HasCompletedToday(history, s.now().In(s.loc)),
	}
}

func (s *Service) teacherView(ctx context.Context, teacherID string) TeacherView {
	events, err := s.TeacherEvents(ctx, teacherID)
	if err != nil {
		return TeacherView{Err: err}
	}
	return TeacherView{Events: events, Pending: PendingEvents(events)}
}

func startWatch[T any](ctx context.Context, sub *feed.Subscription, load func(context.Context) T) *Watch[T] {
	out := make(chan T, 1)
	w := &Watch[T]{C: out, sub: sub, done: make(chan struct{})}

	push := func(v T) bool {
		select {
		case out <- v:
			return true
		case <-w.done:
		case <-ctx.Done():
		}
		return false
	}

	go func() {
		defer close(out)
		defer w.Close()
		if !push(load(ctx)) {
			return
		}
		for range sub.C {
			drain(sub.C)
			if !push(load(ctx)) {
				return
			}
		}
	}()
	return w
}

// drain discards queued changes; one reload covers all of them.
func drain(c <-chan feed.Change) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
