package service

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/guestcsv"
	"gorm.io/gorm"
)

var (
	ErrGuestNotFound = errors.New("guest not found")
	ErrInvalidCSV    = errors.New("invalid guest csv")
)

var (
	csvExtensions   = map[string]struct{}{".csv": {}, ".txt": {}}
	csvContentTypes = map[string]struct{}{"text/csv": {}, "text/plain": {}, "application/vnd.ms-excel": {}}
	phonePattern    = regexp.MustCompile(`^[0-9+()\- ]{3,32}$`)
)

// GuestService 管理请柬的宾客名单及其 CSV 导入导出。
type GuestService struct {
	db          *gorm.DB
	invitations *InvitationService
	maxUpload   int64
}

// GuestInput 为手动添加或编辑宾客的表单。
type GuestInput struct {
	Name     string
	Category string
	Phone    string
}

// GuestFilter 描述宾客列表筛选条件。
type GuestFilter struct {
	Category string
	Search   string
	Page     int
	PerPage  int
}

// GuestListResult 为分页后的宾客列表。
type GuestListResult struct {
	Guests     []db.Guest
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// ImportResult 汇总一次 CSV 导入：成功写入的行数、被拒绝的行数和逐行原因。
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// NewGuestService creates a GuestService. maxUpload limits CSV size in bytes.
func NewGuestService(gdb *gorm.DB, invitations *InvitationService, maxUpload int64) *GuestService {
	return &GuestService{db: gdb, invitations: invitations, maxUpload: maxUpload}
}

// List 返回请柬宾客，按姓名排序。
func (s *GuestService) List(ownerID, invitationID uint, filter GuestFilter) (GuestListResult, error) {
	result := GuestListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 50),
	}
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return result, err
	}

	query := s.db.Model(&db.Guest{}).Where("invitation_id = ?", invitationID)
	if category := guestcsv.NormalizeCategory(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + guestcsv.NormalizeName(search) + "%"
		query = query.Where("name LIKE ? OR phone LIKE ?", like, like)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("name asc").Order("id asc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Guests).Error; err != nil {
		return result, err
	}
	return result, nil
}

// Create 手动添加一位宾客。
func (s *GuestService) Create(ownerID, invitationID uint, input GuestInput) (*db.Guest, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	guest := db.Guest{InvitationID: invitationID}
	if err := applyGuest(&guest, input); err != nil {
		return nil, err
	}
	if err := s.db.Create(&guest).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

// Update 修改宾客信息。
func (s *GuestService) Update(ownerID, invitationID, guestID uint, input GuestInput) (*db.Guest, error) {
	guest, err := s.get(ownerID, invitationID, guestID)
	if err != nil {
		return nil, err
	}
	if err := applyGuest(guest, input); err != nil {
		return nil, err
	}
	if err := s.db.Save(guest).Error; err != nil {
		return nil, err
	}
	return guest, nil
}

// Delete 删除宾客。
func (s *GuestService) Delete(ownerID, invitationID, guestID uint) error {
	guest, err := s.get(ownerID, invitationID, guestID)
	if err != nil {
		return err
	}
	return s.db.Unscoped().Delete(guest).Error
}

// ImportCSV 解析并导入宾客名单。整个文件先完成解析，格式错误时不写入任何数据；
// 单行错误只跳过该行，其余行在同一事务中追加写入。
func (s *GuestService) ImportCSV(ownerID, invitationID uint, file UploadFile) (ImportResult, error) {
	result := ImportResult{Errors: []string{}}

	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return result, err
	}
	if !acceptedCSV(file) {
		return result, ErrUnsupportedFile
	}

	data, err := readLimited(file, s.maxUpload)
	if err != nil {
		return result, err
	}

	decoded, err := guestcsv.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, guestcsv.ErrMalformed) {
			return result, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		return result, err
	}

	for _, rowErr := range decoded.Errors {
		result.Errors = append(result.Errors, rowErrorMessage(rowErr))
	}
	result.Failed = len(decoded.Errors)

	if len(decoded.Records) > 0 {
		guests := make([]db.Guest, 0, len(decoded.Records))
		for _, r := range decoded.Records {
			guests = append(guests, db.Guest{InvitationID: invitationID, Name: r.Name, Category: r.Category})
		}
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(&guests, 100).Error
		}); err != nil {
			return result, fmt.Errorf("insert guests: %w", err)
		}
	}
	result.Success = len(decoded.Records)

	return result, nil
}

// ExportToTempFile 将宾客名单按姓名排序写入临时 CSV 文件并返回路径，调用方负责删除。
func (s *GuestService) ExportToTempFile(ownerID, invitationID uint) (string, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return "", err
	}

	var guests []db.Guest
	if err := s.db.Where("invitation_id = ?", invitationID).
		Order("name asc").Order("id asc").
		Find(&guests).Error; err != nil {
		return "", err
	}

	records := make([]guestcsv.Record, 0, len(guests))
	for _, g := range guests {
		records = append(records, guestcsv.Record{Name: g.Name, Category: g.Category})
	}

	f, err := os.CreateTemp("", "guests-*.csv")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	path := f.Name()

	if err := guestcsv.Encode(f, records); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

// CountByCategory 统计各分类的宾客人数，没有宾客的分类计为 0。
func (s *GuestService) CountByCategory(invitationID uint) (map[string]int64, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row
	if err := s.db.Model(&db.Guest{}).
		Select("category, COUNT(*) AS count").
		Where("invitation_id = ?", invitationID).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(guestcsv.Categories))
	for _, c := range guestcsv.Categories {
		counts[c] = 0
	}
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

func (s *GuestService) get(ownerID, invitationID, guestID uint) (*db.Guest, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}
	var guest db.Guest
	if err := s.db.Where("id = ? AND invitation_id = ?", guestID, invitationID).First(&guest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}
	return &guest, nil
}

func applyGuest(guest *db.Guest, input GuestInput) error {
	verr := &ValidationError{}

	guest.Name = guestcsv.NormalizeName(input.Name)
	if guest.Name == "" {
		verr.Add("name", "请填写宾客姓名")
	} else if utf8.RuneCountInString(guest.Name) > 200 {
		verr.Add("name", "姓名不能超过 200 个字符")
	}

	guest.Category = guestcsv.NormalizeCategory(input.Category)
	if !guestcsv.ValidCategory(guest.Category) {
		verr.Add("category", "分类必须是 family、friend 或 colleague")
	}

	guest.Phone = strings.TrimSpace(input.Phone)
	if guest.Phone != "" && !phonePattern.MatchString(guest.Phone) {
		verr.Add("phone", "电话号码格式不正确")
	}

	return verr.Err()
}

func acceptedCSV(file UploadFile) bool {
	if _, ok := csvExtensions[strings.ToLower(filepath.Ext(file.Filename))]; ok {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(file.ContentType)
	if err != nil {
		return false
	}
	_, ok := csvContentTypes[strings.ToLower(mediaType)]
	return ok
}

func rowErrorMessage(e guestcsv.RowError) string {
	var reason string
	switch e.Code {
	case guestcsv.ErrCodeColumnCount:
		reason = fmt.Sprintf("列数应为 2，实际为 %s", e.Value)
	case guestcsv.ErrCodeEmptyName:
		reason = "姓名不能为空"
	case guestcsv.ErrCodeInvalidCategory:
		reason = fmt.Sprintf("无效的分类 %q（可选 family、friend、colleague）", e.Value)
	default:
		reason = e.Reason
	}
	return fmt.Sprintf("row %d: %s", e.Line, reason)
}
