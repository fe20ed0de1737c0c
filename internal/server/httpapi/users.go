package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/service"
)

type createUserRequest struct {
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	DocumentID    string `json:"document_id"`
	PhoneNumber   string `json:"phone_number"`
	Role          string `json:"role"`
	Password      string `json:"password"`
	ScheduleStart string `json:"schedule_start"`
	ScheduleEnd   string `json:"schedule_end"`
}

type updateUserRequest struct {
	Email         *string `json:"email"`
	FullName      *string `json:"full_name"`
	DocumentID    *string `json:"document_id"`
	PhoneNumber   *string `json:"phone_number"`
	Role          *string `json:"role"`
	IsActive      *bool   `json:"is_active"`
	ScheduleStart *string `json:"schedule_start"`
	ScheduleEnd   *string `json:"schedule_end"`
}

func (r updateUserRequest) patch() model.UserPatch {
	p := model.UserPatch{
		Email:         r.Email,
		FullName:      r.FullName,
		DocumentID:    r.DocumentID,
		PhoneNumber:   r.PhoneNumber,
		IsActive:      r.IsActive,
		ScheduleStart: r.ScheduleStart,
		ScheduleEnd:   r.ScheduleEnd,
	}
	if r.Role != nil {
		role := model.Role(*r.Role)
		p.Role = &role
	}
	return p
}

func (a *API) listUsers(c *gin.Context) {
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	us, err := a.users.List(c.Request.Context(), actor(c), model.UserFilter{
		Role:  model.Role(c.Query("role")),
		Skip:  skip,
		Limit: limit,
	})
	if err != nil {
		abort(c, err)
		return
	}
	out := make([]userResponse, 0, len(us))
	for i := range us {
		out = append(out, toUserResponse(&us[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := a.users.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (a *API) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	u, err := a.users.Create(c.Request.Context(), actor(c), service.NewUser{
		Email:         req.Email,
		FullName:      req.FullName,
		DocumentID:    req.DocumentID,
		PhoneNumber:   req.PhoneNumber,
		Role:          model.Role(req.Role),
		Password:      req.Password,
		ScheduleStart: req.ScheduleStart,
		ScheduleEnd:   req.ScheduleEnd,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (a *API) updateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	u, err := a.users.Update(c.Request.Context(), actor(c), id, req.patch())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (a *API) deactivateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := a.users.Deactivate(c.Request.Context(), actor(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}
