package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/cache"
	"github.com/nanakusa/questward/config"
	"github.com/nanakusa/questward/game/health"
	mw "github.com/nanakusa/questward/middleware"
	"github.com/nanakusa/questward/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

var (
	errBadCredentials = errors.New("auth: invalid credentials")
	errBanned         = errors.New("auth: account banned")
	errNameTaken      = errors.New("auth: username already taken")
)

// AuthHandler handles login, logout, and token refresh. Login doubles as
// registration: an unknown username creates the account and its player.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	health *health.Service
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, h *health.Service) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, health: h}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.authenticate(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, errBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case errors.Is(err, errBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	case errors.Is(err, errNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	token, err := h.openSession(c.Request.Context(), acc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// The player row carries the HP the penalty engine charges.
	if _, err := h.health.EnsurePlayer(c.Request.Context(), acc.ID, acc.Username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "player setup failed"})
		return
	}
	_ = h.db.Model(acc).Update("last_login_at", time.Now())

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
	})
}

// authenticate verifies the password for an existing account, or
// registers the username when it is unknown.
func (h *AuthHandler) authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	var acc model.Account
	err := h.db.WithContext(ctx).Where("username = ?", username).First(&acc).Error
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
			return nil, errBadCredentials
		}
		if acc.Status == 0 {
			return nil, errBanned
		}
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	acc = model.Account{Username: username, PasswordHash: string(hash), Status: 1}
	if err := h.db.WithContext(ctx).Create(&acc).Error; err != nil {
		// A concurrent login just registered the same name.
		if isUniqueViolation(err) {
			return nil, errNameTaken
		}
		return nil, err
	}
	return &acc, nil
}

// openSession issues a JWT and stores its session key in the cache.
func (h *AuthHandler) openSession(ctx context.Context, accountID int64) (string, error) {
	token, err := mw.GenerateToken(accountID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Set(cctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(token))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh: the old session is revoked and
// replaced with a fresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.BearerToken(c)))

	token, err := h.openSession(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// isUniqueViolation detects duplicate-key errors across database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
