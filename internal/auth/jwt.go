package auth

import (
	"errors"
	"strings"
	"time"

	"restaurant-tab-service/internal/orders"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleStaff    UserRole = "STAFF"
	RoleCustomer UserRole = "CUSTOMER"
)

type Claims struct {
	UserID      string   `json:"userId"`
	Role        UserRole `json:"role"`
	Name        *string  `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the role may use the staff API.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// OrderRole maps a token role onto the role recorded by the order engine.
func (r UserRole) OrderRole() orders.Role {
	switch r {
	case RoleAdmin:
		return orders.RoleAdmin
	case RoleStaff:
		return orders.RoleStaff
	default:
		return orders.RoleCustomer
	}
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}
	if secret == "" {
		return nil, errors.New("token secret not configured")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

// IssueAccessToken signs an HS256 token for the given identity.
func IssueAccessToken(userID string, role UserRole, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("token secret not configured")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
