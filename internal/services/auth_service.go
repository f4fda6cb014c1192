package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage"
)

// AuthService issues and revokes the tokens that identify users to the
// ledger API. Revoked token ids live in Redis until the token would have
// expired anyway.
type AuthService struct {
	users     storage.UserStore
	redis     *redis.Client
	validator *validator.Validate
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

func NewAuthService(users storage.UserStore, redisClient *redis.Client) *AuthService {
	return &AuthService{
		users:     users,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Register creates a user with zeroed aggregate totals and returns a token.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     strings.ToLower(req.Email),
		Password:  string(hashed),
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			SendErrorResponse(w, "Email already exists", http.StatusConflict, nil)
			return
		}
		slog.ErrorContext(r.Context(), "User creation failed", "error", err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		slog.ErrorContext(r.Context(), "JWT generation failed", "user_id", user.ID, "error", err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user_id", user.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Token: token, User: user})
}

// Login authenticates by email and password. Banned users are rejected even
// with valid credentials.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "User lookup failed", "error", err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if user.Banned {
		SendErrorResponse(w, "Account is banned", http.StatusForbidden, nil)
		return
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		slog.ErrorContext(r.Context(), "JWT generation failed", "user_id", user.ID, "error", err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Token: token, User: user})
}

// Logout revokes the presented token for its remaining lifetime.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
		return
	}

	claims, err := ParseToken(tokenString)
	if err != nil {
		SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
		return
	}

	if err := s.revokeToken(r.Context(), claims); err != nil {
		slog.ErrorContext(r.Context(), "Token revocation failed", "error", err)
		SendErrorResponse(w, "Failed to log out", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Logged out"})
}

func (s *AuthService) revokeToken(ctx context.Context, claims jwt.MapClaims) error {
	if s.redis == nil {
		return nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	ttl := time.Hour
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if remaining := time.Until(exp.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return s.redis.Set(ctx, RevokedTokenKey(jti), "1", ttl).Err()
}

// RevokedTokenKey is the Redis key under which a revoked token id is stored.
func RevokedTokenKey(jti string) string {
	return "revoked:" + jti
}

func generateJWT(userID, role string) (string, error) {
	expiryHours := viper.GetInt("jwt.expiry_hours")
	if expiryHours <= 0 {
		expiryHours = 24
	}

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"jti":     uuid.NewString(),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Duration(expiryHours) * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// ParseToken validates a token's signature and expiry and returns its claims.
func ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// decodeBody decodes a single JSON object into dst, rejecting unknown fields
// and oversized bodies. Writes the error response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
