package service

import (
	"errors"
	"net/http"
	"strings"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/metrics"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TokenResp is the body of the login and refresh endpoints.
type TokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type AuthHandler struct {
	db     *gorm.DB
	tokens *util.TokenManager
}

func NewAuthHandler(db *gorm.DB, tokens *util.TokenManager) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

// Login checks email and password form fields and issues a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		response.BadRequestError(c, "email and password are required")
		return
	}

	user, err := query.FindUserByEmail(c, h.db, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(c, err)
		return
	}
	if user == nil || !util.CheckPassword(password, user.PasswordHash) {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		response.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", response.InvalidCredentials)
		return
	}

	if err := h.issue(c, user); err != nil {
		writeError(c, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
}

// Refresh exchanges a refresh token for a new pair. Roles are read again so
// that role changes made since the last login take effect.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("refresh_token"))
	if token == "" {
		response.BadRequestError(c, "refresh_token is required")
		return
	}
	msg, err := h.tokens.CheckToken(token, util.RefreshToken)
	if err != nil {
		response.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", response.InvalidToken)
		return
	}

	var user model.User
	if err := h.db.WithContext(c).First(&user, msg.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", response.InvalidToken)
			return
		}
		writeError(c, err)
		return
	}

	if err := h.issue(c, &user); err != nil {
		writeError(c, err)
	}
}

// issue writes a fresh token pair both in the body and in the
// Authorization / X-Refresh-Token response headers.
func (h *AuthHandler) issue(c *gin.Context, user *model.User) error {
	roles, err := query.RoleNames(c, h.db, user)
	if err != nil {
		return err
	}
	access, refresh, err := h.tokens.CreateTokens(&util.JWTMessage{UserID: user.ID, Roles: roles})
	if err != nil {
		return err
	}
	c.Header("Authorization", "Bearer "+access)
	c.Header("X-Refresh-Token", refresh)
	response.Success(c, TokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
	return nil
}

func (h *AuthHandler) Register(group *gin.RouterGroup, loginLimit gin.HandlerFunc) {
	group.POST("/login", loginLimit, h.Login)
	group.POST("/refresh", h.Refresh)
}
