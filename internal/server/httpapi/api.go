package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/service"
)

// API wires services into REST handlers.
type API struct {
	auth   service.AuthService
	users  service.UserService
	visits service.AttendanceService
	ping   func(context.Context) error
}

// New constructs the REST API. ping may be nil.
func New(auth service.AuthService, users service.UserService, visits service.AttendanceService, ping func(context.Context) error) *API {
	return &API{auth: auth, users: users, visits: visits, ping: ping}
}

// NewEngine builds a gin engine with logging and recovery and mounts the API.
func NewEngine(log *zap.Logger, a *API) *gin.Engine {
	r := gin.New()
	r.Use(Recover(log), Logging(log))
	a.Register(r)
	return r
}

// Register mounts all REST routes.
func (a *API) Register(r gin.IRouter) {
	r.GET("/", a.root)
	r.GET("/health", a.health)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", a.login)

	authed := v1.Group("", Authenticate(a.auth))
	authed.GET("/auth/me", a.me)

	staff := authed.Group("", RequireRole(model.RoleAdmin, model.RoleTrainer))
	staff.GET("/users", a.listUsers)
	staff.GET("/users/:id", a.getUser)
	staff.POST("/users", a.createUser)
	staff.PUT("/users/:id", a.updateUser)
	staff.POST("/attendance", a.checkIn)
	staff.GET("/attendance", a.listAttendance)
	staff.PUT("/attendance/:id/checkout", a.checkOut)

	admin := authed.Group("", RequireRole(model.RoleAdmin))
	admin.DELETE("/users/:id", a.deactivateUser)
}

func (a *API) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "gymdesk API"})
}

func (a *API) health(c *gin.Context) {
	if a.ping != nil {
		if err := a.ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abort(c, errs.ErrNotFound)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name})
		return 0, false
	}
	return n, true
}

// userResponse is the public view of a user. Templates are reduced to a flag.
type userResponse struct {
	ID                  int64     `json:"id"`
	Email               string    `json:"email"`
	FullName            string    `json:"full_name"`
	DocumentID          string    `json:"document_id"`
	PhoneNumber         string    `json:"phone_number"`
	GymID               int64     `json:"gym_id"`
	Role                string    `json:"role"`
	IsActive            bool      `json:"is_active"`
	ScheduleStart       string    `json:"schedule_start,omitempty"`
	ScheduleEnd         string    `json:"schedule_end,omitempty"`
	FingerprintEnrolled bool      `json:"fingerprint_enrolled"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                  u.ID,
		Email:               u.Email,
		FullName:            u.FullName,
		DocumentID:          u.DocumentID,
		PhoneNumber:         u.PhoneNumber,
		GymID:               u.GymID,
		Role:                string(u.Role),
		IsActive:            u.IsActive,
		ScheduleStart:       u.ScheduleStart,
		ScheduleEnd:         u.ScheduleEnd,
		FingerprintEnrolled: len(u.Fingerprint1) > 0 && len(u.Fingerprint2) > 0,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}
