package service

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"vinylops/wrap-report/internal/telegram"
)

// --- Error Definitions ---
var (
	ErrVerificationFailed = errors.New("init data verification failed")
	ErrTokenGeneration    = errors.New("failed to generate session token")
)

// AuthService verifies Telegram WebApp init data and mints session tokens
// for subsequent report submissions.
type AuthService interface {
	VerifyInitData(initData string) (*telegram.VerificationResult, string, error)
	GetJWTSecret() string
}

// authService implements the AuthService interface.
type authService struct {
	botToken      string
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService. The bot token and
// JWT secret are injected explicitly so the service is testable with fake
// credentials.
func NewAuthService(botToken, jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 12 * time.Hour
	}
	return &authService{
		botToken:      botToken,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// VerifyInitData validates the signed payload and, when it checks out,
// returns the verified fields together with a session token. A missing bot
// token surfaces as telegram.ErrBotTokenMissing, distinct from a failed
// verification.
func (s *authService) VerifyInitData(initData string) (*telegram.VerificationResult, string, error) {
	result, err := telegram.VerifyInitData(initData, s.botToken)
	if err != nil {
		return nil, "", err
	}
	if !result.Valid {
		return &result, "", ErrVerificationFailed
	}

	token, err := s.generateJWT(sessionSubject(result.Fields))
	if err != nil {
		return nil, "", ErrTokenGeneration
	}
	return &result, token, nil
}

// sessionSubject extracts a stable identifier from the verified fields: the
// Telegram user id when present, otherwise the query id.
func sessionSubject(fields map[string]string) string {
	if raw, ok := fields["user"]; ok {
		var user struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != 0 {
			return strconv.FormatInt(user.ID, 10)
		}
	}
	if queryID := fields["query_id"]; queryID != "" {
		return queryID
	}
	return "telegram-user"
}

// sessionClaims defines the structure of the session JWT payload.
type sessionClaims struct {
	TelegramID string `json:"tid"`
	jwt.RegisteredClaims
}

// generateJWT creates a new session token for the verified user.
func (s *authService) generateJWT(subject string) (string, error) {
	expirationTime := time.Now().Add(s.jwtExpiration)
	claims := &sessionClaims{
		TelegramID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "wrap-report",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// GetJWTSecret returns the JWT secret for middleware authentication
func (s *authService) GetJWTSecret() string {
	return s.jwtSecret
}
