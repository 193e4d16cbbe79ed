package attendance

import (
	"context"
	"time"
)

// Store is the document-database contract the engine runs on.
//
// Reads return records that passed Validate; malformed rows are logged and
// skipped by the implementation. Conditional writes return ErrStale when
// the record is no longer in the expected state.
type Store interface {
	// Insert creates a record. It returns ErrStale if the intern already has
	// a pending event or an approved open session.
	Insert(ctx context.Context, evt Event) error
	// Get returns ErrEventNotFound when no record has the id.
	Get(ctx context.Context, id string) (Event, error)
	ListByIntern(ctx context.Context, internID string) ([]Event, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)

	// CloseSession sets the clock-out half and moves an approved open event
	// back to pending.
	CloseSession(ctx context.Context, id string, c Closing) error
	// Decide moves a pending event to approved or rejected.
	Decide(ctx context.Context, id string, d Decision) error
	// SetPhotoScore records the advisory face-detection score.
	SetPhotoScore(ctx context.Context, id string, score float64) error

	// Rekey atomically moves the record at oldID to newID. It returns
	// ErrIDTaken if newID already exists.
	Rekey(ctx context.Context, oldID, newID string) error
}

// Closing is the patch applied at time-out.
type Closing struct {
	ClockOut        time.Time
	TimeOutPhotoURL string
	IsEarly         bool
	UpdatedAt       time.Time
}

// Decision is the patch applied by approve or reject.
type Decision struct {
	Status     Status
	ApprovedBy string
	Reason     string
	At         time.Time
}
