package auth

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/google/uuid"
)

type Service interface {
	Login(ctx context.Context, email, password string) (user.User, Claims, error)
	Profile(ctx context.Context, userID uuid.UUID) (user.User, error)
	ForgotPassword(ctx context.Context, email, mode string) error
	ResetPassword(ctx context.Context, in ResetInput) error
	ExpireStale(ctx context.Context) (int64, error)
}

type ResetInput struct {
	Email       string `json:"email,omitempty"`
	OTP         string `json:"otp,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	NewPassword string `json:"new_password"`
}

type Options struct {
	JWTSecret     []byte
	JWTTTL        time.Duration
	ResetTokenTTL time.Duration
	BaseURL       string
	// MaxOTPAttempts неверных OTP гасят выданный код; 0 означает DefaultMaxOTPAttempts.
	MaxOTPAttempts int
}

const DefaultMaxOTPAttempts = 5

var errInvalidReset = apperr.Invalid("invalid or expired reset token")

type authService struct {
	users  user.Repository
	tokens TokenRepository
	mail   mailer.Sender
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

func NewService(users user.Repository, tokens TokenRepository, mail mailer.Sender, opts Options, logger *log.Logger) Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxOTPAttempts <= 0 {
		opts.MaxOTPAttempts = DefaultMaxOTPAttempts
	}
	return &authService{
		users:  users,
		tokens: tokens,
		mail:   mail,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (user.User, Claims, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, Claims{}, apperr.Unauthorized("invalid credentials")
		}
		return user.User{}, Claims{}, err
	}
	if err := user.CheckPassword(u.PasswordHash, password); err != nil {
		return user.User{}, Claims{}, apperr.Unauthorized("invalid credentials")
	}
	return u, BuildAccessClaims(u, s.opts.JWTTTL), nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, apperr.NotFound(err.Error())
		}
		return user.User{}, err
	}
	return u, nil
}

// ForgotPassword создаёт OTP или временный токен и отправляет его на почту.
func (s *authService) ForgotPassword(ctx context.Context, email, mode string) error {
	email = user.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotFound(err.Error())
		}
		return err
	}

	var (
		value string
		msg   mailer.Message
	)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", KindOTP:
		mode = KindOTP
		if value, err = generateOTP(); err != nil {
			return err
		}
		msg, err = mailer.ResetOTP(u.Email, mailer.ResetOTPData{Name: u.Name, Code: value, TTL: s.opts.ResetTokenTTL.String()})
	case KindLink:
		mode = KindLink
		if value, err = SignToken(BuildResetClaims(u.Email, s.opts.ResetTokenTTL), s.opts.JWTSecret); err != nil {
			return err
		}
		link := s.opts.BaseURL + "/auth/reset-password?access_token=" + url.QueryEscape(value)
		msg, err = mailer.ResetLink(u.Email, mailer.ResetLinkData{Name: u.Name, Link: link, TTL: s.opts.ResetTokenTTL.String()})
	default:
		return apperr.Invalid("mode must be otp or link")
	}
	if err != nil {
		return err
	}

	if err := s.tokens.ExpireOutstanding(ctx, u.Email); err != nil {
		return err
	}
	token := ResetToken{
		ID:        uuid.New(),
		Email:     u.Email,
		Token:     value,
		Kind:      mode,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return err
	}

	if s.mail != nil {
		if err := s.mail.Send(ctx, msg); err != nil {
			s.logger.Printf("reset mail to %s failed: %v", u.Email, err)
			return err
		}
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, in ResetInput) error {
	token, err := s.lookupToken(ctx, in)
	if err != nil {
		return err
	}

	if token.IsExpired || token.ResetPassword {
		return errInvalidReset
	}
	if s.now().Sub(token.CreatedAt) > s.opts.ResetTokenTTL {
		if err := s.tokens.MarkExpired(ctx, token.ID); err != nil {
			return err
		}
		return errInvalidReset
	}

	if err := user.ValidatePassword(in.NewPassword); err != nil {
		return apperr.Invalid(err.Error())
	}
	u, err := s.users.GetByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return errInvalidReset
		}
		return err
	}
	hashed, err := user.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}

	if err := s.tokens.Consume(ctx, token.ID, u.ID, hashed); err != nil {
		if errors.Is(err, ErrTokenUsed) || errors.Is(err, user.ErrUserNotFound) {
			return errInvalidReset
		}
		return err
	}
	return nil
}

func (s *authService) lookupToken(ctx context.Context, in ResetInput) (ResetToken, error) {
	var (
		token ResetToken
		err   error
	)
	switch {
	case in.AccessToken != "":
		claims, parseErr := ParseToken(in.AccessToken, s.opts.JWTSecret, PurposePasswordReset)
		if parseErr != nil {
			// подпись могла истечь раньше, чем сработала очистка
			if stored, findErr := s.tokens.FindByToken(ctx, in.AccessToken); findErr == nil && !stored.IsExpired {
				if err := s.tokens.MarkExpired(ctx, stored.ID); err != nil {
					s.logger.Printf("expire reset token %s: %v", stored.ID, err)
				}
			}
			return ResetToken{}, errInvalidReset
		}
		token, err = s.tokens.Find(ctx, user.NormalizeEmail(claims.Email), in.AccessToken)
	case in.OTP != "":
		if in.Email == "" {
			return ResetToken{}, apperr.Invalid("email is required with otp")
		}
		email := user.NormalizeEmail(in.Email)
		token, err = s.tokens.Find(ctx, email, strings.TrimSpace(in.OTP))
		if errors.Is(err, ErrTokenNotFound) {
			if recErr := s.tokens.RecordFailedAttempt(ctx, email, s.opts.MaxOTPAttempts); recErr != nil {
				s.logger.Printf("record failed otp attempt for %s: %v", email, recErr)
			}
		}
	default:
		return ResetToken{}, apperr.Invalid("otp or access_token is required")
	}
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ResetToken{}, errInvalidReset
		}
		return ResetToken{}, err
	}
	return token, nil
}

// ExpireStale помечает просроченные токены; вызывается по расписанию.
func (s *authService) ExpireStale(ctx context.Context) (int64, error) {
	return s.tokens.ExpireOlderThan(ctx, s.now().UTC().Add(-s.opts.ResetTokenTTL))
}
