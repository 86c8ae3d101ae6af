package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/pkg/logger"
)

type AuthHandler struct {
	users  storage.UserStore
	tokens *auth.TokenManager
}

func NewAuthHandler(users storage.UserStore, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Role      string `json:"role"`
		Password  string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	errs := fiber.Map{}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "Enter a valid email address"
	}
	if len(req.Password) < auth.MinPasswordLength {
		errs["password"] = "Ensure this field has at least 6 characters"
	}
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleFarmer
	}
	switch {
	case !role.Valid():
		errs["role"] = "Unknown role"
	case role == models.RoleAdmin:
		errs["role"] = "Administrators cannot self-register"
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"errors":  errs,
		})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register user",
		})
	}

	user := &models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.users.CreateUser(c.UserContext(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"errors":  fiber.Map{"email": "A user with this email already exists"},
			})
		}
		logger.Error("Failed to create user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register user",
		})
	}

	logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"errors": fiber.Map{
				"email":    "Email is required",
				"password": "Password is required",
			},
		})
	}

	user, err := h.users.GetUserByEmail(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("Failed to load user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to log in",
		})
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email or password",
		})
	}
	if !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Account is disabled",
		})
	}

	tokens, err := h.tokens.Issue(user)
	if err != nil {
		logger.Error("Failed to issue tokens", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to log in",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"tokens":  tokens,
	})
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Refresh token is required",
		})
	}

	claims, err := h.tokens.Parse(req.Refresh, auth.TypeRefresh)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}
	id, _ := claims.UserID()

	user, err := h.users.GetUserByID(c.UserContext(), id)
	if err != nil || !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	tokens, err := h.tokens.Issue(user)
	if err != nil {
		logger.Error("Failed to issue tokens", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh token",
		})
	}
	return c.JSON(tokens)
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, err := h.users.GetUserByID(c.UserContext(), auth.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// UpdateProfile applies a partial update. Email and activation state are
// not editable here.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Role      *string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"errors":  fiber.Map{"body": "Invalid request body"},
		})
	}

	user, err := h.users.GetUserByID(c.UserContext(), auth.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		if !role.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"errors":  fiber.Map{"role": "Unknown role"},
			})
		}
		if role == models.RoleAdmin && user.Role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"errors":  fiber.Map{"role": "Only administrators can grant the admin role"},
			})
		}
		user.Role = role
	}

	if err := h.users.UpdateUser(c.UserContext(), user); err != nil {
		logger.Error("Failed to update user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}
