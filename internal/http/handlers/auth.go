package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/collegehub/internal/accounts"
	"github.com/geocoder89/collegehub/internal/config"
	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (accounts.Result, error)
	Login(ctx context.Context, in accounts.LoginInput) (accounts.Result, error)
	Profile(ctx context.Context, token string) (user.PublicView, error)
	Lookup(ctx context.Context, id string) (user.PublicView, error)
}

type AuthHandler struct {
	svc AccountService
	log *slog.Logger
}

func NewAuthHandler(svc AccountService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc: svc,
		log: log,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=72"`
	Role     string `json:"role" binding:"required,oneof=student admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=72"`
	Role     string `json:"role" binding:"required"`
}

type AuthResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    user.PublicView `json:"user"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, h.log, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.svc.Register(cctx, accounts.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     user.Role(req.Role),
	})
	if err != nil {
		h.respondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		Token:   res.Token,
		User:    res.User,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, h.log, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.svc.Login(cctx, accounts.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     user.Role(req.Role),
	})
	if err != nil {
		h.respondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, AuthResponse{
		Message: "Login successful",
		Token:   res.Token,
		User:    res.User,
	})
}

// Profile runs behind RequireAuth, which puts the actor on the request
// context; the service still resolves the token so a deleted user is refused.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	token, ok := middlewares.BearerToken(ctx.GetHeader("Authorization"))
	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	profile, err := h.svc.Profile(cctx, token)
	if err != nil {
		h.respondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, profile)
}

// GetUser is mounted behind RequireAuth and RequireRole("admin").
func (h *AuthHandler) GetUser(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	id := ctx.Param("id")

	profile, err := h.svc.Lookup(cctx, id)
	if err != nil {
		h.respondServiceError(ctx, err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "admin user lookup", "user_id", id)

	ctx.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrValidation):
		RespondBadRequest(ctx, "validation_error", MsgValidation)
	case errors.Is(err, accounts.ErrDuplicateEmail):
		RespondBadRequest(ctx, "duplicate_email", MsgDuplicateEmail)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		RespondBadRequest(ctx, "invalid_credentials", MsgInvalidCredentials)
	case errors.Is(err, accounts.ErrUnauthorized):
		RespondUnauthorized(ctx)
	case errors.Is(err, accounts.ErrNotFound):
		RespondNotFound(ctx, MsgNotFound)
	default:
		RespondInternal(ctx)
	}
}
