package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/inkwell/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeMailer struct {
	sent    []string
	bodies  []string
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, to, _, htmlBody string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, htmlBody)
	return nil
}

// tokenFromBody 从邮件正文里抠出重置链接携带的 token。
func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	marker := "reset-password?token="
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("reset link not found in mail body")
	}
	rest := body[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		t.Fatalf("malformed reset link in mail body")
	}
	return rest[:end]
}

func setupUserServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:user-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func TestRegisterAndAuthenticate(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	svc := NewUserService(gdb, &fakeMailer{}, "http://localhost:3000")

	user, err := svc.Register("Ada", "Lovelace", "Ada@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != db.RoleUser {
		t.Fatalf("expected user role, got %q", user.Role)
	}

	if _, err := svc.Register("Ada", "Lovelace", "ada@example.com", "other"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.Authenticate("ada@example.com", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate("ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Authenticate("nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	mailer := &fakeMailer{}
	svc := NewUserService(gdb, mailer, "http://localhost:3000")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Register("Ada", "Lovelace", "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "ada@example.com" {
		t.Fatalf("expected one reset mail to the user, got %v", mailer.sent)
	}

	token := tokenFromBody(t, mailer.bodies[0])

	// 库里只存摘要，裸 token 不落库
	var user db.User
	if err := gdb.Where("email = ?", "ada@example.com").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.ResetPasswordToken == token {
		t.Fatal("raw token must not be stored")
	}

	if _, err := svc.ResetPassword(token, "new password 1", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := svc.Authenticate("ada@example.com", "new password 1"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}

	// token 一次性使用
	if _, err := svc.ResetPassword(token, "another password", now.Add(11*time.Minute)); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid for reused token, got %v", err)
	}
}

func TestPasswordResetExpiry(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	mailer := &fakeMailer{}
	svc := NewUserService(gdb, mailer, "http://localhost:3000")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Register("Ada", "Lovelace", "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	token := tokenFromBody(t, mailer.bodies[0])
	if _, err := svc.ResetPassword(token, "new password 1", now.Add(2*time.Hour)); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid for expired token, got %v", err)
	}
}

func TestPasswordResetThrottle(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	mailer := &fakeMailer{}
	svc := NewUserService(gdb, mailer, "http://localhost:3000")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Register("Ada", "Lovelace", "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now); err != nil {
		t.Fatalf("first request: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now.Add(2*time.Minute)); !errors.Is(err, ErrResetThrottled) {
		t.Fatalf("expected ErrResetThrottled within cooloff, got %v", err)
	}

	// 冷却期过后允许重新发送
	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now.Add(resetTokenTTL+resetResendCooloff+time.Minute)); err != nil {
		t.Fatalf("request after cooloff: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(mailer.sent))
	}
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	mailer := &fakeMailer{}
	svc := NewUserService(gdb, mailer, "http://localhost:3000")

	if err := svc.RequestPasswordReset(context.Background(), "nobody@example.com", time.Now().UTC()); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("no mail should be sent for unknown email, got %v", mailer.sent)
	}
}

func TestPasswordResetMailFailureClearsToken(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	mailer := &fakeMailer{sendErr: errors.New("resend down")}
	svc := NewUserService(gdb, mailer, "http://localhost:3000")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Register("Ada", "Lovelace", "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now); err == nil {
		t.Fatal("expected mail failure to propagate")
	}

	// 失败的请求不占住冷却期，马上重试要能成功
	mailer.sendErr = nil
	if err := svc.RequestPasswordReset(ctx, "ada@example.com", now.Add(time.Second)); err != nil {
		t.Fatalf("retry after mail failure: %v", err)
	}
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	gdb := setupUserServiceTestDB(t)
	svc := NewUserService(gdb, &fakeMailer{}, "http://localhost:3000")

	if _, err := svc.ResetPassword("sometoken", "short", time.Now().UTC()); !IsValidationError(err) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
}
