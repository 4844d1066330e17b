package auth

import (
	"errors"
	"time"

	"github.com/Oniqq60/task_system_control/internal/permission"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeAccess        = "access"
	PurposePasswordReset = "password_reset"
)

var ErrWrongPurpose = errors.New("token issued for another purpose")

type Claims struct {
	UserID  uuid.UUID       `json:"user_id,omitempty"`
	Role    permission.Role `json:"role,omitempty"`
	Email   string          `json:"email,omitempty"`
	Purpose string          `json:"purpose"`
	jwt.RegisteredClaims
}

func BuildAccessClaims(u user.User, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UserID:  u.ID,
		Role:    u.Role,
		Purpose: PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
}

// BuildResetClaims: временный токен для сброса пароля по ссылке.
func BuildResetClaims(email string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Email:   email,
		Purpose: PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
}

func SignToken(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken парсит и валидирует JWT токен, проверяя его назначение.
func ParseToken(tokenString string, secret []byte, purpose string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, jwt.ErrSignatureInvalid
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrWrongPurpose
	}
	if purpose == PurposeAccess && claims.UserID == uuid.Nil && claims.Subject != "" {
		if userID, err := uuid.Parse(claims.Subject); err == nil {
			claims.UserID = userID
		}
	}
	return *claims, nil
}
