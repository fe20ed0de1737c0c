// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Role is the access level of a user inside a gym.
type Role string

// Roles known to the system. Members (RoleUser) cannot log in.
const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleUser    Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleUser:
		return true
	}
	return false
}

// CanLogin reports whether the role is allowed to authenticate (staff only).
func (r Role) CanLogin() bool { return r == RoleAdmin || r == RoleTrainer }

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // zero when the token never expires
}

// EncryptedBlob is an opaque ciphertext produced by the template cipher.
type EncryptedBlob []byte

// Gym is a tenant; every user belongs to exactly one gym.
type Gym struct {
	ID        int64
	Name      string
	Address   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a staff account or a gym member. Fingerprint slots hold encrypted templates.
type User struct {
	ID             int64
	Email          string
	FullName       string
	DocumentID     string
	PhoneNumber    string
	GymID          int64
	Role           Role
	IsActive       bool
	HashedPassword string // empty for members
	ScheduleStart  string // trainers only, "HH:MM"
	ScheduleEnd    string
	Fingerprint1   EncryptedBlob // nil until enrolled
	Fingerprint2   EncryptedBlob
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserFilter narrows user listings.
type UserFilter struct {
	GymID int64 // 0 = any gym
	Role  Role  // "" = any role
	Skip  int
	Limit int
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Email         *string
	FullName      *string
	DocumentID    *string
	PhoneNumber   *string
	Role          *Role
	IsActive      *bool
	ScheduleStart *string
	ScheduleEnd   *string
}

// Attendance is a single check-in record.
type Attendance struct {
	ID             int64
	UserID         int64
	GymID          int64
	AttendanceDate time.Time // date part only
	CheckInTime    time.Time
	CheckOutTime   *time.Time
	RecordedByID   int64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AttendanceFilter narrows attendance listings within a gym.
type AttendanceFilter struct {
	GymID  int64
	UserID int64      // 0 = any member
	Date   *time.Time // nil = any day
	Skip   int
	Limit  int
}
