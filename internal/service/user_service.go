package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/weddinvite/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is deactivated")
	ErrCannotModifySelf   = errors.New("admins cannot deactivate, demote or delete themselves")
)

const minPasswordLength = 8

// UserService 负责注册、登录校验与后台用户管理。
type UserService struct {
	db *gorm.DB
}

// RegisterInput 描述注册表单。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserFilter 描述后台用户列表的筛选条件。
type UserFilter struct {
	Search  string
	Page    int
	PerPage int
}

// UserListResult 为分页后的用户列表。
type UserListResult struct {
	Users      []db.User
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewUserService creates a UserService instance.
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建普通用户，邮箱统一转为小写。
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	name := cleanText(input.Name)
	email := normalizeEmail(input.Email)

	verr := &ValidationError{}
	if name == "" {
		verr.Add("name", "请填写姓名")
	} else if utf8.RuneCountInString(name) > 100 {
		verr.Add("name", "姓名不能超过 100 个字符")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		verr.Add("email", "邮箱格式不正确")
	}
	validatePassword(verr, "password", input.Password)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{Name: name, Email: email, Password: string(hashed), IsActive: true}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码，停用账号返回 ErrUserInactive。
func (s *UserService) Authenticate(email, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return &user, nil
}

// Get fetches a user by id.
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 更新用户姓名。
func (s *UserService) UpdateProfile(id uint, name string) (*db.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	name = cleanText(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "请填写姓名"}}
	}

	user.Name = name
	if err := s.db.Model(user).Update("name", name).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword 校验旧密码后更新为新密码。
func (s *UserService) ChangePassword(id uint, current, next string) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	verr := &ValidationError{}
	validatePassword(verr, "new_password", next)
	if err := verr.Err(); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.Model(user).Update("password", string(hashed)).Error
}

// List 返回后台用户列表，支持按姓名或邮箱搜索。
func (s *UserService) List(filter UserFilter) (UserListResult, error) {
	result := UserListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}

	query := s.db.Model(&db.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Users).Error; err != nil {
		return result, err
	}
	return result, nil
}

// SetActive 启用或停用账号，管理员不能停用自己。
func (s *UserService) SetActive(actorID, id uint, active bool) (*db.User, error) {
	if actorID == id && !active {
		return nil, ErrCannotModifySelf
	}
	return s.updateFlag(id, "is_active", active)
}

// SetAdmin 授予或撤销管理员权限，管理员不能撤销自己。
func (s *UserService) SetAdmin(actorID, id uint, admin bool) (*db.User, error) {
	if actorID == id && !admin {
		return nil, ErrCannotModifySelf
	}
	return s.updateFlag(id, "is_admin", admin)
}

func (s *UserService) updateFlag(id uint, column string, value bool) (*db.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update(column, value).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete 删除用户及其全部请柬数据。
func (s *UserService) Delete(actorID, id uint, invitations *InvitationService) error {
	if actorID == id {
		return ErrCannotModifySelf
	}
	if _, err := s.Get(id); err != nil {
		return err
	}

	var ids []uint
	if err := s.db.Model(&db.Invitation{}).Where("user_id = ?", id).Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, invitationID := range ids {
		if err := invitations.Delete(id, invitationID); err != nil && !errors.Is(err, ErrInvitationNotFound) {
			return err
		}
	}

	return s.db.Delete(&db.User{}, id).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(verr *ValidationError, field, password string) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		verr.Add(field, fmt.Sprintf("密码至少需要 %d 个字符", minPasswordLength))
	}
}
