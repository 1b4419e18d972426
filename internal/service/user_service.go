package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	// ErrResetThrottled 同一账号的重置邮件在冷却期内不重复发送。
	ErrResetThrottled = errors.New("password reset recently requested")
	ErrResetInvalid   = errors.New("invalid or expired reset token")
)

const (
	resetTokenTTL      = time.Hour
	resetResendCooloff = 5 * time.Minute
	minPasswordLength  = 8
)

// Mailer 抽象邮件投递，仅密码重置流程使用。
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// UserService wraps account and password reset operations.
type UserService struct {
	db      *gorm.DB
	mailer  Mailer
	baseURL string
}

// NewUserService creates a UserService instance.
// baseURL 用于拼接邮件中的重置链接。
func NewUserService(gdb *gorm.DB, mailer Mailer, baseURL string) *UserService {
	return &UserService{db: gdb, mailer: mailer, baseURL: baseURL}
}

// Register 创建一个 credentials 账号，邮箱全局唯一。
func (s *UserService) Register(firstName, lastName, email, password string) (*db.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if firstName == "" || lastName == "" || password == "" {
		return nil, newValidationError("please provide all required fields")
	}

	var existing db.User
	if err := s.db.Where("email = ?", normalized).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}

	user := db.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     normalized,
		Password:  string(hashed),
		Role:      db.RoleUser,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码，失败时统一返回 ErrInvalidCredentials。
func (s *UserService) Authenticate(email, password string) (*db.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// RequestPasswordReset 生成一次性重置口令并发送邮件。
// 为防账号枚举，邮箱不存在时静默成功。库里只存 token 的 SHA-256 摘要；
// 邮件发送失败会清掉刚写入的口令并向上报告。
func (s *UserService) RequestPasswordReset(ctx context.Context, email string, now time.Time) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	var user db.User
	if err := s.db.Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if user.ResetPasswordExpire != nil && user.ResetPasswordExpire.After(now.Add(-resetResendCooloff)) {
		return ErrResetThrottled
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)
	digest := hashResetToken(token)
	expire := now.Add(resetTokenTTL)

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"reset_password_token":  digest,
		"reset_password_expire": expire,
	}).Error; err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	body := resetEmailBody(user.FirstName, resetURL)

	if err := s.mailer.Send(ctx, user.Email, "Reset Your Password - Inkwell Blog", body); err != nil {
		// 邮件没发出去就不保留口令，避免一个没人收到的 token 占住冷却期
		s.db.Model(&user).Updates(map[string]interface{}{
			"reset_password_token":  "",
			"reset_password_expire": nil,
		})
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword 用重置口令设置新密码，口令一次性使用。
func (s *UserService) ResetPassword(token, password string, now time.Time) (*db.User, error) {
	if token == "" || password == "" {
		return nil, newValidationError("missing required fields")
	}
	if len(password) < minPasswordLength {
		return nil, newValidationError("password must be at least %d characters long", minPasswordLength)
	}

	var user db.User
	err := s.db.Where("reset_password_token = ? AND reset_password_expire > ?", hashResetToken(token), now).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetInvalid
		}
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"password":              string(hashed),
		"reset_password_token":  "",
		"reset_password_expire": nil,
	}).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func hashResetToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

func resetEmailBody(firstName, resetURL string) string {
	return fmt.Sprintf(`<div style="max-width:600px;margin:0 auto;font-family:Arial,sans-serif;">
  <div style="background:#4F46E5;color:#fff;padding:20px;text-align:center;">
    <h1>Reset Your Password</h1>
  </div>
  <div style="background:#fff;padding:20px;border:1px solid #e5e7eb;border-top:none;">
    <p>Hello %s,</p>
    <p>We received a request to reset your password. Click the button below to create a new password:</p>
    <div style="text-align:center;">
      <a href="%s" style="display:inline-block;padding:12px 24px;background:#4F46E5;color:#fff;text-decoration:none;border-radius:5px;">Reset Password</a>
    </div>
    <p>If you didn't request this password reset, you can safely ignore this email. The link will expire in 1 hour.</p>
    <p>For security reasons, this link can only be used once.</p>
  </div>
</div>`, firstName, resetURL)
}
