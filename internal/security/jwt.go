package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer        = "nyanpass"
	roleUser      = "user"
	roleAdmin     = "admin"
	adminTokenTTL = 12 * time.Hour
)

var (
	// ErrMissingSecret reports an unset signing secret.
	ErrMissingSecret = errors.New("jwt secret not configured")
	// ErrInvalidToken reports a token that failed validation or carries the wrong role.
	ErrInvalidToken = errors.New("invalid token")
)

// UserClaims identifies an authenticated end user.
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AdminClaims identifies an authenticated admin.
type AdminClaims struct {
	AdminID  uint64 `json:"admin_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateUserToken signs a user token valid for ttl.
func GenerateUserToken(secret string, ttl time.Duration, userID uint64, email string) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := UserClaims{
		UserID: userID,
		Email:  email,
		Role:   roleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign user token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseUserToken validates a user token.
func ParseUserToken(secret, token string) (*UserClaims, error) {
	claims := &UserClaims{}
	if errParse := parse(secret, token, claims); errParse != nil {
		return nil, errParse
	}
	if claims.Role != roleUser || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateAdminToken signs an admin token.
func GenerateAdminToken(secret string, adminID uint64, username string) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	now := time.Now().UTC()
	expiresAt := now.Add(adminTokenTTL)
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		Role:     roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(adminID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAdminToken validates an admin token.
func ParseAdminToken(secret, token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if errParse := parse(secret, token, claims); errParse != nil {
		return nil, errParse
	}
	if claims.Role != roleAdmin || claims.AdminID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parse(secret, token string, claims jwt.Claims) error {
	if secret == "" {
		return ErrMissingSecret
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
