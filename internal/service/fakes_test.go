package service

import (
	"context"
	"sort"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/gymdesk/internal/crypto"
	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/limiter"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

type fakeUsers struct {
	byID   map[int64]*model.User
	nextID int64

	createErr error
	getErr    error
	setFPErr  error
	countErr  error

	setFPCalls int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(us ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*model.User{}}
	for _, u := range us {
		c := *u
		f.byID[u.ID] = &c
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.GymID == u.GymID && (x.Email == u.Email || x.DocumentID == u.DocumentID) {
			return errs.ErrAlreadyExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	c := *u
	f.byID[u.ID] = &c
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) sorted() []*model.User {
	out := make([]*model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.sorted() {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmailAndGym(_ context.Context, email string, gymID int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email && u.GymID == gymID {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context, flt model.UserFilter) ([]model.User, error) {
	out := []model.User{}
	for _, u := range f.sorted() {
		if flt.GymID != 0 && u.GymID != flt.GymID {
			continue
		}
		if flt.Role != "" && u.Role != flt.Role {
			continue
		}
		out = append(out, *u)
	}
	return page(out, flt.Skip, flt.Limit), nil
}

func page[T any](in []T, skip, limit int) []T {
	if skip >= len(in) {
		return []T{}
	}
	in = in[skip:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (f *fakeUsers) Update(_ context.Context, id int64, p model.UserPatch) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetFingerprints(_ context.Context, id int64, fp1, fp2 model.EncryptedBlob) error {
	f.setFPCalls++
	if f.setFPErr != nil {
		return f.setFPErr
	}
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Fingerprint1 = append(model.EncryptedBlob(nil), fp1...)
	u.Fingerprint2 = append(model.EncryptedBlob(nil), fp2...)
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUsers) ListMembers(_ context.Context, gymID int64, offset, limit int) ([]model.User, error) {
	out := []model.User{}
	for _, u := range f.sorted() {
		if u.GymID == gymID && u.Role == model.RoleUser {
			out = append(out, *u)
		}
	}
	return page(out, offset, limit), nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.byID)), nil
}

type fakeGyms struct {
	byID      map[int64]*model.Gym
	createErr error
}

var _ repository.GymRepository = (*fakeGyms)(nil)

func (f *fakeGyms) Create(_ context.Context, g *model.Gym) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byID == nil {
		f.byID = map[int64]*model.Gym{}
	}
	g.ID = int64(len(f.byID) + 1)
	c := *g
	f.byID[g.ID] = &c
	return nil
}

func (f *fakeGyms) GetByID(_ context.Context, id int64) (*model.Gym, error) {
	g, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *g
	return &c, nil
}

type fakeVisits struct {
	rows      []model.Attendance
	createErr error
	lastList  model.AttendanceFilter
}

var _ repository.AttendanceRepository = (*fakeVisits)(nil)

func (f *fakeVisits) Create(_ context.Context, a *model.Attendance) error {
	if f.createErr != nil {
		return f.createErr
	}
	a.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *a)
	return nil
}

func (f *fakeVisits) List(_ context.Context, flt model.AttendanceFilter) ([]model.Attendance, error) {
	f.lastList = flt
	out := []model.Attendance{}
	for _, a := range f.rows {
		if a.GymID == flt.GymID && (flt.UserID == 0 || a.UserID == flt.UserID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeVisits) CheckOut(_ context.Context, id, gymID int64, at time.Time) (*model.Attendance, error) {
	for i := range f.rows {
		a := &f.rows[i]
		if a.ID == id && a.GymID == gymID && a.CheckOutTime == nil {
			t := at
			a.CheckOutTime = &t
			c := *a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// fakeCipher reverses bytes behind a marker prefix; blobs without it fail to open.
type fakeCipher struct {
	encErr error
}

const fakeSeal = "sealed:"

func (c *fakeCipher) Encrypt(pt []byte) ([]byte, error) {
	if c.encErr != nil {
		return nil, c.encErr
	}
	return append([]byte(fakeSeal), pt...), nil
}

func (c *fakeCipher) Decrypt(blob []byte) ([]byte, error) {
	s := string(blob)
	if !strings.HasPrefix(s, fakeSeal) {
		return nil, errs.ErrValidation
	}
	return []byte(strings.TrimPrefix(s, fakeSeal)), nil
}

func staff(id, gymID int64, role model.Role, email, password string) *model.User {
	u := &model.User{
		ID: id, Email: email, FullName: email, DocumentID: "doc-" + email,
		GymID: gymID, Role: role, IsActive: true,
	}
	if password != "" {
		h, err := pkgcrypto.HashPassword(password)
		if err != nil {
			panic(err)
		}
		u.HashedPassword = h
	}
	return u
}

func member(id, gymID int64, name string) *model.User {
	return &model.User{
		ID: id, Email: name + "@mail.io", FullName: name, DocumentID: "doc-" + name,
		GymID: gymID, Role: model.RoleUser, IsActive: true,
	}
}
