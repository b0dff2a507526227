package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"nightcircle/internal/models"
	"nightcircle/internal/store"
)

const (
	tokenTTL          = 72 * time.Hour
	bearerPrefix      = "Bearer "
	accessTokenCookie = "access_token"
)

// AuthService issues and verifies HS256 tokens and owns credentials.
type AuthService struct {
	users  store.Users
	secret []byte
	now    func() time.Time
}

func NewAuthService(users store.Users, secret string) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Visible:      true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, storeErr("create user", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := s.GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, Username: user.Username, UserID: user.ID}, nil
}

func (s *AuthService) GenerateJWT(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      s.now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Identity is the authenticated principal behind a request or connection.
type Identity struct {
	UserID   string
	Username string
}

func (s *AuthService) identify(tokenString string) (*Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	username, _ := claims["username"].(string)
	for _, key := range []string{"user_id", "id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return &Identity{UserID: v, Username: username}, nil
			}
		case float64:
			return &Identity{UserID: fmt.Sprintf("%.0f", v), Username: username}, nil
		}
	}
	return nil, fmt.Errorf("%w: token has no user id", ErrUnauthenticated)
}

// Identify resolves the principal behind a connection attempt.
func (s *AuthService) Identify(h models.Handshake) (*Identity, error) {
	token := ExtractToken(h)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	return s.identify(token)
}

// ExtractToken looks for a token in the Authorization header, then the
// explicit auth payload, then the access_token cookie. First match wins.
func ExtractToken(h models.Handshake) string {
	if header := h.Header("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}
	if token := h.Auth["token"]; token != "" {
		return token
	}
	for _, part := range strings.Split(h.Header("Cookie"), ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, accessTokenCookie+"=") {
			continue
		}
		raw := strings.TrimPrefix(part, accessTokenCookie+"=")
		if decoded, err := url.PathUnescape(raw); err == nil {
			return decoded
		}
		return raw
	}
	return ""
}
