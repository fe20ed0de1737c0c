package service

import (
	"context"
	"fmt"

	pkgcrypto "github.com/and161185/gymdesk/internal/crypto"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

// BootstrapAdmin describes the first administrator seeded into an empty database.
type BootstrapAdmin struct {
	Email    string
	Password string
	GymName  string
}

// Bootstrap creates a gym and its admin when no users exist yet.
// It reports whether anything was created.
func Bootstrap(ctx context.Context, users repository.UserRepository, gyms repository.GymRepository, in BootstrapAdmin) (bool, error) {
	if in.Email == "" || in.Password == "" {
		return false, nil
	}
	n, err := users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	name := in.GymName
	if name == "" {
		name = "Main"
	}
	g := &model.Gym{Name: name, IsActive: true}
	if err := gyms.Create(ctx, g); err != nil {
		return false, fmt.Errorf("create gym: %w", err)
	}

	h, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return false, err
	}
	admin := &model.User{
		Email:          in.Email,
		FullName:       "Administrador",
		DocumentID:     "Admin",
		GymID:          g.ID,
		Role:           model.RoleAdmin,
		IsActive:       true,
		HashedPassword: h,
	}
	if err := users.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
