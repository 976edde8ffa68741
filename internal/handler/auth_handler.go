package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
)

const (
	sessionUserIDKey      = "user_id"
	currentUserContextKey = "__current_user"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func userJSON(user *db.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"is_admin":   user.IsAdmin,
		"is_active":  user.IsActive,
		"created_at": user.CreatedAt,
	}
}

// currentUser 返回 AuthRequired 写入上下文的用户。
func currentUser(c *gin.Context) *db.User {
	value, ok := c.Get(currentUserContextKey)
	if !ok {
		return nil
	}
	user, _ := value.(*db.User)
	return user
}

func startSession(c *gin.Context, user *db.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserIDKey, user.ID)
	return session.Save()
}

// Register 注册新用户并直接登录。
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "注册信息格式错误") {
		return
	}

	user, err := a.users.Register(service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		respondServiceError(c, err, "注册失败")
		return
	}

	if err := startSession(c, user); err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "注册成功", "user": userJSON(user)})
}

// Login 校验邮箱密码并建立会话。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "请输入邮箱和密码") {
		return
	}

	user, err := a.users.Authenticate(req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err, "登录失败")
		return
	}

	if err := startSession(c, user); err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "登录成功", "user": userJSON(user)})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// Me 返回当前登录用户。
func (a *API) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": userJSON(currentUser(c))})
}

// UpdateMe 修改当前用户的姓名。
func (a *API) UpdateMe(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req, "姓名不能为空") {
		return
	}

	user, err := a.users.UpdateProfile(currentUser(c).ID, req.Name)
	if err != nil {
		respondServiceError(c, err, "更新资料失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "资料已更新", "user": userJSON(user)})
}

// ChangePassword 修改当前用户的密码。
func (a *API) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req, "请填写当前密码和新密码") {
		return
	}

	if err := a.users.ChangePassword(currentUser(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusBadRequest, "当前密码不正确")
			return
		}
		respondServiceError(c, err, "修改密码失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "密码已修改"})
}

// AuthRequired 校验会话并加载当前用户，停用的账号会被登出。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserIDKey).(uint)
		if !ok || userID == 0 {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}

		user, err := a.users.Get(userID)
		if err != nil || !user.IsActive {
			if err != nil && !errors.Is(err, service.ErrUserNotFound) {
				c.Error(err)
			}
			session.Clear()
			_ = session.Save()
			respondError(c, http.StatusUnauthorized, "登录已失效，请重新登录")
			c.Abort()
			return
		}

		c.Set(currentUserContextKey, user)
		c.Next()
	}
}

// AdminRequired 必须在 AuthRequired 之后使用。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsAdmin {
			respondError(c, http.StatusForbidden, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}
