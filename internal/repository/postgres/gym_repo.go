package postgres

import (
	"context"

	"github.com/and161185/gymdesk/internal/model"
)

// GymRepo implements GymRepository using PostgreSQL.
type GymRepo struct{ db *DB }

// NewGymRepo constructs a gym repository.
func NewGymRepo(db *DB) *GymRepo { return &GymRepo{db: db} }

// Create inserts a gym row.
func (r *GymRepo) Create(ctx context.Context, g *model.Gym) error {
	const q = `
INSERT INTO gyms (name, address, is_active)
VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, g.Name, g.Address, g.IsActive).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return mapErr(err)
}

// GetByID selects a gym by ID.
func (r *GymRepo) GetByID(ctx context.Context, id int64) (*model.Gym, error) {
	const q = `
SELECT id, name, address, is_active, created_at, updated_at
FROM gyms WHERE id=$1`
	var g model.Gym
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.Address, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}
