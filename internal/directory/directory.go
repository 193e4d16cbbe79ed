package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
)

// Role is the account type of a user.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleTeacher    Role = "teacher"
	RoleIntern     Role = "intern"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSupervisor, RoleTeacher, RoleIntern:
		return true
	}
	return false
}

var (
	ErrUserNotFound = apperr.New(apperr.KindValidation, "user not found")
	ErrNotAnIntern  = apperr.New(apperr.KindValidation, "user is not an intern")
)

// User is a directory entry. TeacherID and the scheduled times only apply to
// interns.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	TeacherID        string    `json:"teacherId,omitempty"`
	ScheduledTimeIn  string    `json:"scheduledTimeIn,omitempty"`
	ScheduledTimeOut string    `json:"scheduledTimeOut,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Profile projects an intern onto the schedule context used by the
// attendance engine.
func (u User) Profile() (attendance.InternProfile, error) {
	if u.Role != RoleIntern {
		return attendance.InternProfile{}, ErrNotAnIntern
	}
	return attendance.InternProfile{
		UID:              u.ID,
		TeacherID:        u.TeacherID,
		ScheduledTimeIn:  u.ScheduledTimeIn,
		ScheduledTimeOut: u.ScheduledTimeOut,
	}, nil
}

// Directory looks users up by id or email.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	InternProfile(ctx context.Context, internID string) (attendance.InternProfile, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Memory is an in-process directory used by tests and the memory backend.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemory creates a directory seeded with users.
func NewMemory(users ...User) *Memory {
	m := &Memory{users: make(map[string]User)}
	for _, u := range users {
		m.Put(u)
	}
	return m
}

// Put inserts or replaces a user.
func (m *Memory) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	m.users[u.ID] = u
}

func (m *Memory) FindByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *Memory) InternProfile(ctx context.Context, internID string) (attendance.InternProfile, error) {
	u, err := m.FindByID(ctx, internID)
	if err != nil {
		return attendance.InternProfile{}, err
	}
	return u.Profile()
}
