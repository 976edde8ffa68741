package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/weddinvite/internal/service"
)

var registerTagNames sync.Once

// useJSONFieldNames 让 validator 报告 json 标签中的字段名，与前端表单保持一致。
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondValidation(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "提交的数据有误", "fields": fields})
}

// bindJSON 解析请求体；字段校验失败返回 422 及逐字段提示，格式错误返回 400。
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	return handleBindError(c, c.ShouldBindJSON(dst), message)
}

// bindRequest 按 Content-Type 解析 JSON 或表单。
func bindRequest(c *gin.Context, dst interface{}, message string) bool {
	return handleBindError(c, c.ShouldBind(dst), message)
}

func handleBindError(c *gin.Context, err error, message string) bool {
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondValidation(c, validationMessages(verrs))
		return false
	}
	respondError(c, http.StatusBadRequest, message)
	return false
}

func validationMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, exists := fields[name]; exists {
			continue
		}
		fields[name] = validationMessage(fe)
	}
	return fields
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "email":
		return "邮箱格式不正确"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("至少需要 %s 个字符", fe.Param())
		}
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("不能超过 %s 个字符", fe.Param())
		}
		return fmt.Sprintf("不能大于 %s", fe.Param())
	case "oneof":
		return "可选值为: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "格式不正确"
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// formUpload 读取 multipart 表单中的文件，调用方需执行返回的 close。
func formUpload(c *gin.Context, field string) (service.UploadFile, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.UploadFile{}, func() {}, service.ErrFileRequired
	}
	f, err := header.Open()
	if err != nil {
		return service.UploadFile{}, func() {}, err
	}
	return service.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      f,
	}, func() { f.Close() }, nil
}

// respondServiceError 把 service 层错误映射为 HTTP 状态码与中文提示，未知错误记录后返回 fallback。
func respondServiceError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		respondValidation(c, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvitationNotFound):
		respondError(c, http.StatusNotFound, "请柬不存在")
	case errors.Is(err, service.ErrGuestNotFound):
		respondError(c, http.StatusNotFound, "宾客不存在")
	case errors.Is(err, service.ErrPhotoNotFound):
		respondError(c, http.StatusNotFound, "照片不存在")
	case errors.Is(err, service.ErrTemplateNotFound):
		respondError(c, http.StatusNotFound, "模板不存在")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "当前状态不允许该操作")
	case errors.Is(err, service.ErrIncompleteInvitation):
		respondError(c, http.StatusUnprocessableEntity, "发布前请先选择模板并填写活动日期")
	case errors.Is(err, service.ErrSlugExhausted):
		respondError(c, http.StatusServiceUnavailable, "暂时无法生成链接，请稍后重试")
	case errors.Is(err, service.ErrTemplateInUse):
		respondError(c, http.StatusConflict, "模板正在被请柬使用，无法删除")
	case errors.Is(err, service.ErrTemplateSlugTaken):
		respondError(c, http.StatusConflict, "模板标识已存在")
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, "该邮箱已注册")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "邮箱或密码错误")
	case errors.Is(err, service.ErrUserInactive):
		respondError(c, http.StatusForbidden, "账号已被停用")
	case errors.Is(err, service.ErrCannotModifySelf):
		respondError(c, http.StatusBadRequest, "不能对自己的账号执行该操作")
	case errors.Is(err, service.ErrGalleryFull):
		respondError(c, http.StatusConflict, fmt.Sprintf("相册最多 %d 张照片", service.MaxGalleryPhotos))
	case errors.Is(err, service.ErrInvalidOrder):
		respondError(c, http.StatusBadRequest, "照片顺序必须包含全部照片且不能重复")
	case errors.Is(err, service.ErrFileRequired):
		respondError(c, http.StatusBadRequest, "请选择要上传的文件")
	case errors.Is(err, service.ErrFileTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "文件超过大小限制")
	case errors.Is(err, service.ErrUnsupportedFile):
		respondError(c, http.StatusUnsupportedMediaType, "仅支持 CSV 文件")
	case errors.Is(err, service.ErrUnsupportedImage):
		respondError(c, http.StatusUnsupportedMediaType, "仅支持 JPEG、PNG、GIF 或 WebP 图片")
	case errors.Is(err, service.ErrInvalidCSV):
		respondError(c, http.StatusBadRequest, "CSV 格式错误，表头必须为 name,category")
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
