// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/gymdesk/internal/model"
)

// UserRepository provides access to staff and member accounts.
type UserRepository interface {
	// Create inserts a new user and fills ID and timestamps.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail loads the first user with the given email in any gym.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByEmailAndGym loads a user by email inside one gym.
	GetByEmailAndGym(ctx context.Context, email string, gymID int64) (*model.User, error)
	// List returns users matching the filter ordered by ID.
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	// Update applies a partial update and returns the stored row.
	Update(ctx context.Context, id int64, p model.UserPatch) (*model.User, error)
	// SetFingerprints stores both encrypted templates in a single statement.
	SetFingerprints(ctx context.Context, id int64, fp1, fp2 model.EncryptedBlob) error
	// ListMembers pages members (role user) of a gym ordered by ID.
	ListMembers(ctx context.Context, gymID int64, offset, limit int) ([]model.User, error)
	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)
}

// GymRepository provides access to gyms.
type GymRepository interface {
	// Create inserts a gym and fills ID and timestamps.
	Create(ctx context.Context, g *model.Gym) error
	// GetByID loads a gym by ID.
	GetByID(ctx context.Context, id int64) (*model.Gym, error)
}
