package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	GymID    int64  `json:"gym_id" binding:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "email, password and gym_id are required"})
		return
	}
	tok, u, err := a.auth.Login(c.Request.Context(), req.Email, req.Password, req.GymID, c.ClientIP())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{AccessToken: tok.AccessToken, TokenType: "bearer", User: toUserResponse(&u)})
}

func (a *API) me(c *gin.Context) {
	c.JSON(http.StatusOK, toUserResponse(actor(c)))
}
