package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	KindOTP  = "otp"
	KindLink = "link"
)

var (
	ErrTokenNotFound = errors.New("reset token not found")
	ErrTokenUsed     = errors.New("reset token already used or expired")
)

// ResetToken: одноразовый OTP или временный токен для сброса пароля.
type ResetToken struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"index;not null"`
	Token         string    `gorm:"index;not null"`
	Kind          string    `gorm:"type:varchar(10);not null"`
	ResetPassword bool      `gorm:"not null;default:false"`
	IsExpired     bool      `gorm:"not null;default:false"`
	Attempts      int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

type TokenRepository interface {
	Create(ctx context.Context, t ResetToken) error
	Find(ctx context.Context, email, token string) (ResetToken, error)
	FindByToken(ctx context.Context, token string) (ResetToken, error)
	MarkExpired(ctx context.Context, id uuid.UUID) error
	ExpireOutstanding(ctx context.Context, email string) error
	RecordFailedAttempt(ctx context.Context, email string, limit int) error
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Consume(ctx context.Context, tokenID, userID uuid.UUID, passwordHash string) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, t ResetToken) error {
	return r.db.WithContext(ctx).Create(&t).Error
}

func (r *tokenRepository) Find(ctx context.Context, email, token string) (ResetToken, error) {
	return r.first(r.db.WithContext(ctx).Where("email = ? AND token = ?", email, token))
}

func (r *tokenRepository) FindByToken(ctx context.Context, token string) (ResetToken, error) {
	return r.first(r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *tokenRepository) first(tx *gorm.DB) (ResetToken, error) {
	var t ResetToken
	err := tx.Order("created_at DESC").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ResetToken{}, ErrTokenNotFound
	}
	return t, err
}

func (r *tokenRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&ResetToken{}).Where("id = ?", id).Update("is_expired", true).Error
}

// ExpireOutstanding гасит все ещё действующие токены пользователя.
func (r *tokenRepository) ExpireOutstanding(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Model(&ResetToken{}).
		Where("email = ? AND is_expired = ?", email, false).
		Update("is_expired", true).Error
}

// RecordFailedAttempt считает неверный OTP для действующих токенов email;
// после limit ошибок токены гасятся.
func (r *tokenRepository) RecordFailedAttempt(ctx context.Context, email string, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&ResetToken{}).
			Where("email = ? AND kind = ? AND is_expired = ?", email, KindOTP, false).
			Update("attempts", gorm.Expr("attempts + 1")).Error
		if err != nil {
			return err
		}
		return tx.Model(&ResetToken{}).
			Where("email = ? AND kind = ? AND is_expired = ? AND attempts >= ?", email, KindOTP, false, limit).
			Update("is_expired", true).Error
	})
}

func (r *tokenRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&ResetToken{}).
		Where("created_at < ? AND is_expired = ?", cutoff, false).
		Update("is_expired", true)
	return res.RowsAffected, res.Error
}

// Consume marks the token used and stores the new password in one transaction.
// The conditional update lets only one of several concurrent requests win.
func (r *tokenRepository) Consume(ctx context.Context, tokenID, userID uuid.UUID, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ResetToken{}).
			Where("id = ? AND reset_password = ? AND is_expired = ?", tokenID, false, false).
			Updates(map[string]interface{}{"reset_password": true, "is_expired": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrTokenUsed
		}

		res = tx.Model(&user.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return user.ErrUserNotFound
		}
		return nil
	})
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
