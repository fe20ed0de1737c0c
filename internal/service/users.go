package service

import (
	"context"
	"fmt"
	"strings"

	pkgcrypto "github.com/and161185/gymdesk/internal/crypto"
	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

// NewUser is the input for creating a staff account or member.
type NewUser struct {
	Email         string
	FullName      string
	DocumentID    string
	PhoneNumber   string
	Role          model.Role
	Password      string // staff only
	ScheduleStart string
	ScheduleEnd   string
}

// UserService manages accounts inside the caller's gym.
type UserService interface {
	List(ctx context.Context, actor *model.User, f model.UserFilter) ([]model.User, error)
	Get(ctx context.Context, actor *model.User, id int64) (*model.User, error)
	Create(ctx context.Context, actor *model.User, in NewUser) (*model.User, error)
	Update(ctx context.Context, actor *model.User, id int64, p model.UserPatch) (*model.User, error)
	// Deactivate clears is_active; rows are never deleted.
	Deactivate(ctx context.Context, actor *model.User, id int64) (*model.User, error)
}

type UserServiceImpl struct {
	users repository.UserRepository
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository) *UserServiceImpl {
	return &UserServiceImpl{users: users}
}

func requireStaff(actor *model.User) error {
	if actor == nil || !actor.IsActive {
		return errs.ErrUnauthorized
	}
	if !actor.Role.CanLogin() {
		return errs.ErrForbidden
	}
	return nil
}

func requireAdmin(actor *model.User) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if actor.Role != model.RoleAdmin {
		return errs.ErrForbidden
	}
	return nil
}

// List returns users of the caller's gym.
func (s *UserServiceImpl) List(ctx context.Context, actor *model.User, f model.UserFilter) ([]model.User, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, f.Role)
	}
	if f.Skip < 0 || f.Limit < 0 {
		return nil, fmt.Errorf("%w: negative paging", errs.ErrValidation)
	}
	f.GymID = actor.GymID
	return s.users.List(ctx, f)
}

// Get loads a user of the caller's gym; other gyms read as not found.
func (s *UserServiceImpl) Get(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.GymID != actor.GymID {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

// Create adds a user to the caller's gym. Only admins create staff.
func (s *UserServiceImpl) Create(ctx context.Context, actor *model.User, in NewUser) (*model.User, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	switch {
	case in.Email == "" || in.FullName == "" || in.DocumentID == "":
		return nil, fmt.Errorf("%w: email, full_name and document_id are required", errs.ErrValidation)
	case !in.Role.Valid():
		return nil, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, in.Role)
	}

	u := &model.User{
		Email:         in.Email,
		FullName:      in.FullName,
		DocumentID:    in.DocumentID,
		PhoneNumber:   in.PhoneNumber,
		GymID:         actor.GymID,
		Role:          in.Role,
		IsActive:      true,
		ScheduleStart: in.ScheduleStart,
		ScheduleEnd:   in.ScheduleEnd,
	}
	if in.Role.CanLogin() {
		if actor.Role != model.RoleAdmin {
			return nil, errs.ErrForbidden
		}
		if in.Password == "" {
			return nil, fmt.Errorf("%w: password required for staff", errs.ErrValidation)
		}
		h, err := pkgcrypto.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.HashedPassword = h
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update patches a user of the caller's gym. Trainers may edit members only and cannot change roles.
func (s *UserServiceImpl) Update(ctx context.Context, actor *model.User, id int64, p model.UserPatch) (*model.User, error) {
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && (target.Role != model.RoleUser || p.Role != nil) {
		return nil, errs.ErrForbidden
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, *p.Role)
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) == "" {
		return nil, fmt.Errorf("%w: empty email", errs.ErrValidation)
	}
	return s.users.Update(ctx, id, p)
}

// Deactivate soft-deletes a user. Admin only.
func (s *UserServiceImpl) Deactivate(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, fmt.Errorf("%w: cannot deactivate yourself", errs.ErrValidation)
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	inactive := false
	return s.users.Update(ctx, id, model.UserPatch{IsActive: &inactive})
}
