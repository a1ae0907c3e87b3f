package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/identity"
	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/users"
)

// userSvc is the interface expected by AuthHandler, satisfied by *users.UserService.
type userSvc interface {
	Signup(ctx context.Context, email, password, name string, role model.Role, dept model.Department) (*users.User, error)
	Login(ctx context.Context, email, password string) (*users.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	ListFieldHeads(ctx context.Context, dept model.Department) ([]*users.FieldHeadSummary, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// AuthHandler handles user authentication and directory routes.
type AuthHandler struct {
	users  userSvc
	tokens *identity.SessionIssuer
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(userSvc userSvc, tokens *identity.SessionIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: userSvc, tokens: tokens, logger: logger}
}

// Register mounts all auth and user directory routes on the router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.GET("/me", identity.RequireActor(h.tokens), h.Me)
		auth.POST("/change-password", identity.RequireActor(h.tokens), h.ChangePassword)
	}

	usersGroup := rg.Group("/users")
	usersGroup.Use(identity.RequireStaff(h.tokens))
	{
		usersGroup.GET("/field-heads", h.ListFieldHeads)
	}
}

// ─── Request types ───────────────────────────────────────────────────────────

type signupRequest struct {
	Email      string `json:"email"    binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	Name       string `json:"name"     binding:"required"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password"     binding:"required"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// Signup handles POST /auth/signup — creates a new account. An omitted role
// defaults to reporter; staff accounts are normally provisioned by the seed
// tooling rather than self-signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := model.Role(req.Role)
	if req.Role == "" {
		role = model.RoleReporter
	}

	u, err := h.users.Signup(c.Request.Context(), req.Email, req.Password, req.Name, role, model.Department(req.Department))
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok, err := h.tokens.Issue(u.ID, u.Email, u.Name, u.Role, u.Department)
	if err != nil {
		h.logger.Error("issue token after signup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u, "token": tok})
}

// Login handles POST /auth/login — authenticates with email/password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tok, err := h.tokens.Issue(u.ID, u.Email, u.Name, u.Role, u.Department)
	if err != nil {
		h.logger.Error("issue token after login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u, "token": tok})
}

// Me handles GET /auth/me — returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	actor := identity.ActorFromCtx(c)

	u, err := h.users.GetByID(c.Request.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account no longer exists"})
			return
		}
		h.logger.Error("load account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := identity.ActorFromCtx(c)
	if err := h.users.ChangePassword(c.Request.Context(), actor.ID, req.CurrentPassword, req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// ListFieldHeads handles GET /users/field-heads — the assignment directory.
// An optional ?department= narrows the listing.
func (h *AuthHandler) ListFieldHeads(c *gin.Context) {
	dept := model.Department(c.Query("department"))

	list, err := h.users.ListFieldHeads(c.Request.Context(), dept)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*users.FieldHeadSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"field_heads": list, "count": len(list)})
}
