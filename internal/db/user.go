package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了平台用户模型，IsAdmin 为真时可访问管理后台。
type User struct {
	gorm.Model
	Name     string `gorm:"size:100;not null"`
	Email    string `gorm:"size:255;uniqueIndex;not null"`
	Password string `gorm:"not null" json:"-"`
	IsAdmin  bool   `gorm:"default:false"`
	IsActive bool   `gorm:"default:true"`
}

// EnsureAdmin 存在性检查：若邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
// 已存在的账号会被提升为管理员，但密码保持不变。
func EnsureAdmin(gdb *gorm.DB, email, password string) error {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return gdb.Create(&User{
			Name:     "Administrator",
			Email:    trimmedEmail,
			Password: string(hashed),
			IsAdmin:  true,
			IsActive: true,
		}).Error
	}

	if existing.IsAdmin {
		return nil
	}
	return gdb.Model(&existing).Update("is_admin", true).Error
}
