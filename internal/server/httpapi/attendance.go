package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/and161185/gymdesk/internal/model"
)

type checkInRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Notes  string `json:"notes"`
}

type attendanceResponse struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	GymID          int64      `json:"gym_id"`
	AttendanceDate string     `json:"attendance_date"`
	CheckInTime    time.Time  `json:"check_in_time"`
	CheckOutTime   *time.Time `json:"check_out_time"`
	RecordedByID   int64      `json:"recorded_by_id"`
	Notes          string     `json:"notes,omitempty"`
}

func toAttendanceResponse(a *model.Attendance) attendanceResponse {
	return attendanceResponse{
		ID:             a.ID,
		UserID:         a.UserID,
		GymID:          a.GymID,
		AttendanceDate: a.AttendanceDate.Format(time.DateOnly),
		CheckInTime:    a.CheckInTime,
		CheckOutTime:   a.CheckOutTime,
		RecordedByID:   a.RecordedByID,
		Notes:          a.Notes,
	}
}

func (a *API) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}
	rec, err := a.visits.CheckIn(c.Request.Context(), actor(c), req.UserID, req.Notes)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAttendanceResponse(rec))
}

func (a *API) listAttendance(c *gin.Context) {
	f := model.AttendanceFilter{}
	if s := c.Query("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid user_id"})
			return
		}
		f.UserID = id
	}
	if s := c.Query("date"); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "date must be YYYY-MM-DD"})
			return
		}
		f.Date = &d
	}
	var ok bool
	if f.Skip, ok = queryInt(c, "skip"); !ok {
		return
	}
	if f.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}

	recs, err := a.visits.List(c.Request.Context(), actor(c), f)
	if err != nil {
		abort(c, err)
		return
	}
	out := make([]attendanceResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toAttendanceResponse(&recs[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) checkOut(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rec, err := a.visits.CheckOut(c.Request.Context(), actor(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttendanceResponse(rec))
}
