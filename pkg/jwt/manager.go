package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Claims is the access token payload. The subject carries the numeric user ID.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// UserID parses the subject into a user ID
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Manager issues and verifies HMAC-signed access tokens
type Manager struct {
	secretKey []byte
	expiresIn time.Duration
}

// NewManager creates a Manager. expiresIn is in seconds.
func NewManager(secret string, expiresIn int) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		expiresIn: time.Duration(expiresIn) * time.Second,
	}
}

// GenerateAccessToken issues a token for the given user
func (m *Manager) GenerateAccessToken(userID uint64, role, firstName string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiresIn)),
		},
		Role:      role,
		FirstName: firstName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken validates the signature and expiry of tokenString
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// VerifyUserID verifies tokenString and returns the user it was issued for
func (m *Manager) VerifyUserID(tokenString string) (uint64, error) {
	claims, err := m.VerifyToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
