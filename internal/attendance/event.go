package attendance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the approval state of an attendance event.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Location is where the intern stood at time-in.
type Location struct {
	Address   string  `json:"address" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Event is one clock-in to clock-out cycle of an intern, or the still-open
// half of one.
type Event struct {
	ID              string     `json:"id" validate:"required"`
	InternID        string     `json:"internId" validate:"required"`
	TeacherID       string     `json:"teacherId" validate:"required"`
	ClockIn         time.Time  `json:"clockIn" validate:"required"`
	ClockOut        *time.Time `json:"clockOut,omitempty"`
	Location        Location   `json:"location"`
	PhotoURL        string     `json:"photoUrl" validate:"required"`
	TimeOutPhotoURL string     `json:"timeOutPhotoUrl,omitempty"`
	Status          Status     `json:"status" validate:"required"`
	IsLate          bool       `json:"isLate"`
	IsEarly         bool       `json:"isEarly"`
	CreatedAt       time.Time  `json:"createdAt" validate:"required"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	ApprovalReason  string     `json:"approvalReason,omitempty"`
	PhotoScore      *float64   `json:"photoScore,omitempty"`
}

// Open reports whether the event has no clock-out yet.
func (e Event) Open() bool {
	return e.ClockOut == nil
}

// InternProfile is the schedule context the engine reads from the user
// directory. Scheduled times are "HH:MM" or empty.
type InternProfile struct {
	UID              string
	TeacherID        string
	ScheduledTimeIn  string
	ScheduledTimeOut string
}

var validate = validator.New()

// Validate checks a record at the deserialization boundary. Records that
// fail are logged and dropped by the stores rather than handed upward.
func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return errInvalidStatus
	}
	if e.ClockOut == nil && strings.TrimSpace(e.TimeOutPhotoURL) != "" {
		return errTimeOutWithoutClockOut
	}
	return nil
}
