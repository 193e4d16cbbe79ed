package attendance

import (
	"errors"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
)

var (
	ErrPhotoRequired        = apperr.New(apperr.KindValidation, "photo required")
	ErrTimeOutPhotoRequired = apperr.New(apperr.KindValidation, "time-out photo required")
	ErrEmbeddedPhoto        = apperr.New(apperr.KindValidation, "photo must be an uploaded url, not embedded data")
	ErrLocationRequired     = apperr.New(apperr.KindValidation, "location required")
	ErrNoTeacher            = apperr.New(apperr.KindValidation, "intern has no assigned teacher")
	ErrInternRequired       = apperr.New(apperr.KindValidation, "intern id required")
	ErrApproverRequired     = apperr.New(apperr.KindValidation, "approver id required")

	ErrPendingExists     = apperr.New(apperr.KindStateConflict, "a submission is already waiting for approval")
	ErrAlreadyClockedIn  = apperr.New(apperr.KindStateConflict, "already clocked in")
	ErrCompletedToday    = apperr.New(apperr.KindStateConflict, "already checked in today")
	ErrNoOpenSession     = apperr.New(apperr.KindStateConflict, "no approved open session to close")
	ErrNotPending        = apperr.New(apperr.KindStateConflict, "attendance record is not waiting for approval")
	ErrEventNotFound     = apperr.New(apperr.KindStateConflict, "attendance record not found")
	ErrConcurrentUpdate  = apperr.New(apperr.KindStateConflict, "attendance record changed, reload and try again")
	ErrMigrationConflict = apperr.New(apperr.KindMigrationConflict, "deterministic id already taken")
)

// ErrStale is returned by stores when a conditional write found the record
// in a different state than expected, or a uniqueness guard fired.
var ErrStale = errors.New("attendance: record state changed")

// ErrIDTaken is returned by Store.Rekey when the target id already exists.
var ErrIDTaken = errors.New("attendance: id already exists")

var (
	errInvalidStatus          = errors.New("attendance: unknown status")
	errTimeOutWithoutClockOut = errors.New("attendance: time-out photo without clock-out")
)
