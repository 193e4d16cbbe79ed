package feed

import (
	"context"
	"sync"
	"time"
)

// Change announces that an attendance record was written. Consumers treat
// it as a signal to re-read state, not as a diff.
type Change struct {
	EventID   string    `json:"eventId"`
	InternID  string    `json:"internId"`
	TeacherID string    `json:"teacherId"`
	Action    string    `json:"action"`
	At        time.Time `json:"at"`
}

// Broker fans changes out to live subscribers.
type Broker interface {
	Publish(ctx context.Context, topic string, c Change) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
}

// InternTopic is the topic carrying changes for one intern.
func InternTopic(internID string) string { return "attendance:intern:" + internID }

// TeacherTopic is the topic carrying changes for one teacher's interns.
func TeacherTopic(teacherID string) string { return "attendance:teacher:" + teacherID }

// Subscription delivers changes on C until Close is called or the context
// passed to Subscribe ends. C is closed afterwards.
type Subscription struct {
	C <-chan Change

	once   sync.Once
	cancel func()
}

func newSubscription(c <-chan Change, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
