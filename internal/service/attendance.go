package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

// AttendanceService records member check-ins for the caller's gym.
type AttendanceService interface {
	CheckIn(ctx context.Context, actor *model.User, userID int64, notes string) (*model.Attendance, error)
	List(ctx context.Context, actor *model.User, f model.AttendanceFilter) ([]model.Attendance, error)
	CheckOut(ctx context.Context, actor *model.User, id int64) (*model.Attendance, error)
}

type AttendanceServiceImpl struct {
	users  repository.UserRepository
	visits repository.AttendanceRepository
	now    func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(users repository.UserRepository, visits repository.AttendanceRepository) *AttendanceServiceImpl {
	return &AttendanceServiceImpl{users: users, visits: visits, now: time.Now}
}

// CheckIn records a visit of an active member of the caller's gym.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, actor *model.User, userID int64, notes string) (*model.Attendance, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.GymID != actor.GymID {
		return nil, errs.ErrNotFound
	}
	if !u.IsActive {
		return nil, errs.ErrInactive
	}

	now := s.now().UTC()
	a := &model.Attendance{
		UserID:         u.ID,
		GymID:          actor.GymID,
		AttendanceDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		CheckInTime:    now,
		RecordedByID:   actor.ID,
		Notes:          notes,
	}
	if err := s.visits.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns records of the caller's gym.
func (s *AttendanceServiceImpl) List(ctx context.Context, actor *model.User, f model.AttendanceFilter) ([]model.Attendance, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if f.Skip < 0 || f.Limit < 0 {
		return nil, fmt.Errorf("%w: negative paging", errs.ErrValidation)
	}
	f.GymID = actor.GymID
	return s.visits.List(ctx, f)
}

// CheckOut closes an open record of the caller's gym.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, actor *model.User, id int64) (*model.Attendance, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.visits.CheckOut(ctx, id, actor.GymID, s.now().UTC())
}
