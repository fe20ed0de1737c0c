package repository

import (
	"context"
	"time"

	"github.com/and161185/gymdesk/internal/model"
)

// AttendanceRepository stores member check-ins.
type AttendanceRepository interface {
	// Create inserts a check-in record and fills ID and timestamps.
	Create(ctx context.Context, a *model.Attendance) error
	// List returns records of one gym, newest check-in first.
	List(ctx context.Context, f model.AttendanceFilter) ([]model.Attendance, error)
	// CheckOut sets the check-out time of an open record in the given gym.
	CheckOut(ctx context.Context, id, gymID int64, at time.Time) (*model.Attendance, error)
}
