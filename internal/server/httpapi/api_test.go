package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/service"
)

type fakeAuth struct {
	loginErr error
	tokens   map[string]*model.User
	gotIP    string
}

func (f *fakeAuth) Login(_ context.Context, email, _ string, gymID int64, ip string) (model.Tokens, model.User, error) {
	f.gotIP = ip
	if f.loginErr != nil {
		return model.Tokens{}, model.User{}, f.loginErr
	}
	return model.Tokens{AccessToken: "tok"}, model.User{ID: 1, Email: email, GymID: gymID, Role: model.RoleAdmin, IsActive: true}, nil
}

func (f *fakeAuth) AuthenticateOperator(context.Context, string, string, string) (*model.User, error) {
	return nil, errs.ErrUnauthorized
}

func (f *fakeAuth) UserFromToken(_ context.Context, token string) (*model.User, error) {
	u, ok := f.tokens[token]
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

type fakeUserSvc struct {
	listFilter model.UserFilter
	users      map[int64]*model.User
	created    *service.NewUser
	patch      model.UserPatch
	err        error
	panicOnGet bool
}

func (f *fakeUserSvc) List(_ context.Context, _ *model.User, flt model.UserFilter) ([]model.User, error) {
	f.listFilter = flt
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, f.err
}

func (f *fakeUserSvc) Get(_ context.Context, _ *model.User, id int64) (*model.User, error) {
	if f.panicOnGet {
		panic("boom")
	}
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserSvc) Create(_ context.Context, actor *model.User, in service.NewUser) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &in
	return &model.User{ID: 42, Email: in.Email, FullName: in.FullName, GymID: actor.GymID, Role: in.Role, IsActive: true}, nil
}

func (f *fakeUserSvc) Update(_ context.Context, _ *model.User, id int64, p model.UserPatch) (*model.User, error) {
	f.patch = p
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, f.err
}

func (f *fakeUserSvc) Deactivate(_ context.Context, _ *model.User, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	cp.IsActive = false
	return &cp, nil
}

type fakeVisitSvc struct {
	filter model.AttendanceFilter
	err    error
}

func (f *fakeVisitSvc) CheckIn(_ context.Context, actor *model.User, userID int64, notes string) (*model.Attendance, error) {
	if f.err != nil {
		return nil, f.err
	}
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	return &model.Attendance{ID: 9, UserID: userID, GymID: actor.GymID, AttendanceDate: day, CheckInTime: day.Add(8 * time.Hour), RecordedByID: actor.ID, Notes: notes}, nil
}

func (f *fakeVisitSvc) List(_ context.Context, _ *model.User, flt model.AttendanceFilter) ([]model.Attendance, error) {
	f.filter = flt
	return nil, f.err
}

func (f *fakeVisitSvc) CheckOut(_ context.Context, _ *model.User, id int64) (*model.Attendance, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &model.Attendance{ID: id, CheckOutTime: &now}, nil
}

type harness struct {
	engine *gin.Engine
	auth   *fakeAuth
	users  *fakeUserSvc
	visits *fakeVisitSvc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		auth: &fakeAuth{tokens: map[string]*model.User{
			"admin":   {ID: 1, GymID: 7, Role: model.RoleAdmin, IsActive: true},
			"trainer": {ID: 2, GymID: 7, Role: model.RoleTrainer, IsActive: true},
			"member":  {ID: 3, GymID: 7, Role: model.RoleUser, IsActive: true},
		}},
		users: &fakeUserSvc{users: map[int64]*model.User{
			5: {ID: 5, Email: "m@x.io", GymID: 7, Role: model.RoleUser, IsActive: true, Fingerprint1: []byte{1}, Fingerprint2: []byte{2}},
		}},
		visits: &fakeVisitSvc{},
	}
	h.engine = NewEngine(zap.NewNop(), New(h.auth, h.users, h.visits, nil))
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRootAndHealth(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/", "", nil).Code)

	w := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", decode[map[string]string](t, w)["status"])
}

func TestHealth_PingFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := New(&fakeAuth{}, &fakeUserSvc{}, &fakeVisitSvc{}, func(context.Context) error { return errors.New("db down") })
	e := NewEngine(zap.NewNop(), a)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "a@x.io", "password": "pw", "gym_id": 7})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[loginResponse](t, w)
	require.Equal(t, "tok", got.AccessToken)
	require.Equal(t, "bearer", got.TokenType)
	require.Equal(t, int64(7), got.User.GymID)
	require.NotEmpty(t, h.auth.gotIP)
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad creds", errs.ErrUnauthorized, http.StatusUnauthorized},
		{"member", errs.ErrForbidden, http.StatusForbidden},
		{"inactive", errs.ErrInactive, http.StatusBadRequest},
		{"locked", errs.ErrRateLimited, http.StatusTooManyRequests},
		{"unexpected", errors.New("db"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.auth.loginErr = tc.err
			w := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "a@x.io", "password": "pw", "gym_id": 7})
			require.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "a@x.io"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/v1/auth/me", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/v1/auth/me", "nope", nil).Code)

	w := h.do(t, http.MethodGet, "/api/v1/auth/me", "trainer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "trainer", decode[userResponse](t, w).Role)
}

func TestUsers_RoleGates(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/v1/users", "member", nil).Code)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodDelete, "/api/v1/users/5", "trainer", nil).Code)

	w := h.do(t, http.MethodDelete, "/api/v1/users/5", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, decode[userResponse](t, w).IsActive)
}

func TestUsers_ListPassesFilter(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/api/v1/users?role=user&skip=10&limit=5", "trainer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, model.UserFilter{Role: model.RoleUser, Skip: 10, Limit: 5}, h.users.listFilter)

	got := decode[[]map[string]any](t, w)
	require.Len(t, got, 1)
	require.Equal(t, true, got[0]["fingerprint_enrolled"])
	require.NotContains(t, got[0], "fingerprint_1")

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/users?skip=-1", "trainer", nil).Code)
}

func TestUsers_GetAndNotFound(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/users/5", "admin", nil).Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/users/99", "admin", nil).Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/users/abc", "admin", nil).Code)
}

func TestUsers_Create(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/users", "admin", map[string]any{
		"email": "n@x.io", "full_name": "New", "document_id": "D1", "role": "trainer", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, model.RoleTrainer, h.users.created.Role)
	require.Equal(t, "pw", h.users.created.Password)
	require.Equal(t, int64(7), decode[userResponse](t, w).GymID)

	h.users.err = errs.ErrAlreadyExists
	w = h.do(t, http.MethodPost, "/api/v1/users", "admin", map[string]any{"email": "n@x.io"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers_UpdatePatch(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPut, "/api/v1/users/5", "trainer", map[string]any{"full_name": "Renamed", "role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, h.users.patch.FullName)
	require.Equal(t, "Renamed", *h.users.patch.FullName)
	require.NotNil(t, h.users.patch.Role)
	require.Equal(t, model.RoleAdmin, *h.users.patch.Role)
	require.Nil(t, h.users.patch.Email)

	h.users.err = errs.ErrForbidden
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodPut, "/api/v1/users/5", "trainer", map[string]any{"role": "admin"}).Code)
}

func TestAttendance_CheckIn(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/attendance", "trainer", map[string]any{"user_id": 5, "notes": "early"})
	require.Equal(t, http.StatusCreated, w.Code)
	got := decode[attendanceResponse](t, w)
	require.Equal(t, "2026-03-04", got.AttendanceDate)
	require.Equal(t, int64(2), got.RecordedByID)
	require.Nil(t, got.CheckOutTime)

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/attendance", "trainer", map[string]any{}).Code)

	h.visits.err = errs.ErrInactive
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/attendance", "trainer", map[string]any{"user_id": 5}).Code)
}

func TestAttendance_ListFilter(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/api/v1/attendance?user_id=5&date=2026-03-04", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(5), h.visits.filter.UserID)
	require.NotNil(t, h.visits.filter.Date)
	require.Equal(t, "2026-03-04", h.visits.filter.Date.Format(time.DateOnly))
	require.Equal(t, "[]", w.Body.String())

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/attendance?date=04/03/2026", "admin", nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/attendance?user_id=x", "admin", nil).Code)
}

func TestAttendance_CheckOut(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPut, "/api/v1/attendance/9/checkout", "trainer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, decode[attendanceResponse](t, w).CheckOutTime)

	h.visits.err = errs.ErrValidation
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/attendance/9/checkout", "trainer", nil).Code)
}

func TestRecover(t *testing.T) {
	h := newHarness(t)
	h.users.panicOnGet = true
	w := h.do(t, http.MethodGet, "/api/v1/users/5", "admin", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal", decode[map[string]string](t, w)["detail"])
}
