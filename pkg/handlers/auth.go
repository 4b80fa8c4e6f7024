package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) LoginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("LoginUser: Invalid request body: %v", err)
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.Email = strings.ToLower(req.Email)

	user, err := h.Users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Errorf("LoginUser: Error finding user by email: %v", err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Login failed", nil)
		return
	}
	if user == nil {
		log.Debugf("LoginUser: User with email '%s' not found.", req.Email)
		utils.ResponseWithError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Debugf("LoginUser: Invalid password for user '%s'.", req.Email)
		utils.ResponseWithError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Email, user.Username)
	if err != nil {
		log.Errorf("LoginUser: Failed to generate JWT token for user %s: %v", user.Email, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Failed to generate authentication token", nil)
		return
	}

	// Load-on-auth: warm the user's history and content in the background so
	// the first dashboard request does not pay for it.
	userID := user.ID
	h.goBackground(time.Minute, func(ctx context.Context) {
		if _, err := h.Sessions.Open(ctx, userID); err != nil {
			log.Warnf("LoginUser: preloading state for user %s failed: %v", userID, err)
		}
	})

	log.Infof("User %s logged in successfully.", user.Email)
	utils.ResponseWithSuccess(c, http.StatusOK, "Login successful", gin.H{"token": token})
}

func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("RegisterUser: Invalid request body: %v", err)
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req.Email = strings.ToLower(req.Email)
	ctx := c.Request.Context()

	existingUser, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		log.Errorf("RegisterUser: Error finding user by email '%s': %v", req.Email, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Error finding user by email", nil)
		return
	}
	if existingUser != nil {
		log.Debugf("RegisterUser: User with email '%s' already exists.", req.Email)
		utils.ResponseWithError(c, http.StatusConflict, "User with email already exists", nil)
		return
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Errorf("RegisterUser: Error hashing password: %v", err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Error hashing password", nil)
		return
	}

	createdUser, err := h.Users.Create(ctx, &db.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
	})
	if err != nil {
		log.Errorf("RegisterUser: Error creating user: %v", err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Error creating user", nil)
		return
	}
	log.Infof("User with ID '%s' created.", createdUser.ID.String())

	utils.ResponseWithSuccess(c, http.StatusCreated, "User created successfully", gin.H{"id": createdUser.ID})
}

// DeleteUser removes the caller's account. Identity comes from the token only.
func (h *Handlers) DeleteUser(c *gin.Context) {
	claims, ok := middleware.GetUserClaimsFromContext(c)
	if !ok {
		log.Error("DeleteUser: User claims not found in context.")
		utils.ResponseWithError(c, http.StatusInternalServerError, "Authentication error: User session data missing.", nil)
		return
	}

	err := h.Users.Delete(c.Request.Context(), claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warnf("DeleteUser: User '%s' not found, possibly already deleted.", claims.UserID)
		utils.ResponseWithError(c, http.StatusNotFound, "User account not found or already deleted.", nil)
		return
	}
	if err != nil {
		log.Errorf("DeleteUser: Error deleting user '%s': %v", claims.UserID, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Failed to delete user account", nil)
		return
	}

	h.Sessions.Close(claims.UserID)
	h.players.dropUser(claims.UserID)
	log.Infof("DeleteUser: User '%s' (email: '%s') deleted successfully.", claims.UserID, claims.Email)
	utils.ResponseWithSuccess(c, http.StatusOK, "User account deleted successfully", nil)
}
