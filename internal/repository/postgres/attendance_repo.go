package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/gymdesk/internal/model"
)

const attendanceCols = `id, user_id, gym_id, attendance_date, check_in_time, check_out_time, recorded_by_id, notes, created_at, updated_at`

// AttendanceRepo implements AttendanceRepository using PostgreSQL.
type AttendanceRepo struct{ db *DB }

// NewAttendanceRepo constructs an attendance repository.
func NewAttendanceRepo(db *DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

func scanAttendance(row scanner) (*model.Attendance, error) {
	var a model.Attendance
	if err := row.Scan(&a.ID, &a.UserID, &a.GymID, &a.AttendanceDate, &a.CheckInTime, &a.CheckOutTime,
		&a.RecordedByID, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a check-in row.
func (r *AttendanceRepo) Create(ctx context.Context, a *model.Attendance) error {
	const q = `
INSERT INTO attendance (user_id, gym_id, attendance_date, check_in_time, recorded_by_id, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, a.UserID, a.GymID, a.AttendanceDate, a.CheckInTime, a.RecordedByID, a.Notes).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

// List selects check-ins of a gym with optional member and day filters.
func (r *AttendanceRepo) List(ctx context.Context, f model.AttendanceFilter) ([]model.Attendance, error) {
	args := []any{f.GymID}
	q := `SELECT ` + attendanceCols + ` FROM attendance WHERE gym_id=$1`
	if f.UserID != 0 {
		args = append(args, f.UserID)
		q += fmt.Sprintf(` AND user_id=$%d`, len(args))
	}
	if f.Date != nil {
		args = append(args, *f.Date)
		q += fmt.Sprintf(` AND attendance_date=$%d`, len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, f.Skip, limit)
	q += fmt.Sprintf(` ORDER BY check_in_time DESC OFFSET $%d LIMIT $%d`, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CheckOut closes an open check-in; closed or foreign records report not found.
func (r *AttendanceRepo) CheckOut(ctx context.Context, id, gymID int64, at time.Time) (*model.Attendance, error) {
	q := `UPDATE attendance SET check_out_time=$3, updated_at=now()
WHERE id=$1 AND gym_id=$2 AND check_out_time IS NULL
RETURNING ` + attendanceCols
	a, err := scanAttendance(r.db.Pool.QueryRow(ctx, q, id, gymID, at))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}
