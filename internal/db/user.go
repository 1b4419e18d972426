package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色取值
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User 定义了用户模型。重置口令只保存 SHA-256 摘要，明文 token 仅出现在邮件里。
type User struct {
	gorm.Model
	FirstName           string `gorm:"not null"`
	LastName            string `gorm:"not null"`
	Email               string `gorm:"size:254;uniqueIndex;not null"`
	Password            string `gorm:"not null"`
	Role                string `gorm:"size:16;default:user"`
	ResetPasswordToken  string `gorm:"size:64;index"`
	ResetPasswordExpire *time.Time
}

// EnsureAdmin 存在性检查：若提供的邮箱与密码均非空且不存在对应账号，
// 则创建一个 bcrypt 哈希的管理员用户。
func EnsureAdmin(email, password string) error {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			FirstName: "Site",
			LastName:  "Admin",
			Email:     trimmedEmail,
			Password:  string(hashed),
			Role:      RoleAdmin,
		}).Error
	}

	return nil
}
