package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
)

const userCols = `id, email, full_name, document_id, phone_number, gym_id, role, is_active,
COALESCE(hashed_password, ''), COALESCE(schedule_start, ''), COALESCE(schedule_end, ''),
fingerprint1, fingerprint2, created_at, updated_at`

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

func scanUser(row scanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.FullName, &u.DocumentID, &u.PhoneNumber, &u.GymID, &role, &u.IsActive,
		&u.HashedPassword, &u.ScheduleStart, &u.ScheduleEnd,
		&u.Fingerprint1, &u.Fingerprint2, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (email, full_name, document_id, phone_number, gym_id, role, is_active, hashed_password, schedule_start, schedule_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		u.Email, u.FullName, u.DocumentID, u.PhoneNumber, u.GymID, string(u.Role), u.IsActive,
		nullString(u.HashedPassword), nullString(u.ScheduleStart), nullString(u.ScheduleEnd),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// GetByEmail selects the lowest-ID user with the given email across all gyms.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE email=$1 ORDER BY id LIMIT 1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// GetByEmailAndGym selects a user by (email, gym_id).
func (r *UserRepo) GetByEmailAndGym(ctx context.Context, email string, gymID int64) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE email=$1 AND gym_id=$2`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email, gymID))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// List selects users by optional gym and role.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	if f.GymID != 0 {
		args = append(args, f.GymID)
		where = append(where, fmt.Sprintf("gym_id=$%d", len(args)))
	}
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role=$%d", len(args)))
	}
	q := `SELECT ` + userCols + ` FROM users`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, f.Skip, limit)
	q += fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT $%d`, len(args)-1, len(args))
	return r.queryUsers(ctx, q, args...)
}

// ListMembers pages members of one gym.
func (r *UserRepo) ListMembers(ctx context.Context, gymID int64, offset, limit int) ([]model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE gym_id=$1 AND role='user' ORDER BY id OFFSET $2 LIMIT $3`
	return r.queryUsers(ctx, q, gymID, offset, limit)
}

func (r *UserRepo) queryUsers(ctx context.Context, q string, args ...any) ([]model.User, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update applies non-nil patch fields in one statement.
func (r *UserRepo) Update(ctx context.Context, id int64, p model.UserPatch) (*model.User, error) {
	var (
		set  []string
		args = []any{id}
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.FullName != nil {
		add("full_name", *p.FullName)
	}
	if p.DocumentID != nil {
		add("document_id", *p.DocumentID)
	}
	if p.PhoneNumber != nil {
		add("phone_number", *p.PhoneNumber)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.ScheduleStart != nil {
		add("schedule_start", nullString(*p.ScheduleStart))
	}
	if p.ScheduleEnd != nil {
		add("schedule_end", nullString(*p.ScheduleEnd))
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	set = append(set, "updated_at=now()")
	q := `UPDATE users SET ` + strings.Join(set, ", ") + ` WHERE id=$1 RETURNING ` + userCols
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// SetFingerprints writes both template slots and the timestamp atomically.
func (r *UserRepo) SetFingerprints(ctx context.Context, id int64, fp1, fp2 model.EncryptedBlob) error {
	const q = `UPDATE users SET fingerprint1=$2, fingerprint2=$3, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, []byte(fp1), []byte(fp2))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Count returns the number of user rows.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
