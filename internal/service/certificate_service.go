package service

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateService 完课证书：资格判定 + PDF 渲染。
// 渲染结果不落盘，证书编号每次渲染重新生成。
type CertificateService struct {
	ProgressRepo *repository.ProgressRepository
	CourseRepo   *repository.CourseRepository
	UserRepo     *repository.UserRepository
	ApprovalRepo *repository.CertificateApprovalRepository
	Config       *config.CertificateConfig

	httpClient *http.Client
}

func NewCertificateService(
	progressRepo *repository.ProgressRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	approvalRepo *repository.CertificateApprovalRepository,
	cfg *config.CertificateConfig,
) *CertificateService {
	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	return &CertificateService{
		ProgressRepo: progressRepo,
		CourseRepo:   courseRepo,
		UserRepo:     userRepo,
		ApprovalRepo: approvalRepo,
		Config:       cfg,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// UpdateConfig 配置热更新入口，模板拉取超时随新配置重建
func (s *CertificateService) UpdateConfig(cfg *config.CertificateConfig) {
	s.Config = cfg
	s.httpClient = &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second}
}

// Eligibility 资格判定结果，Reason 供前端渲染对应的引导文案
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CheckEligibility 完课 && 课程开启证书（严格模式下还要有未撤销的授予记录）
func (s *CertificateService) CheckEligibility(userID, courseID uint) (*Eligibility, *model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrCourseNotFound
		}
		return nil, nil, err
	}

	if !course.CertificateEnabled {
		return &Eligibility{Eligible: false, Reason: "certificate_disabled"}, course, nil
	}

	progress, err := s.ProgressRepo.Find(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Eligibility{Eligible: false, Reason: "not_completed"}, course, nil
		}
		return nil, nil, err
	}
	if !progress.Completed {
		return &Eligibility{Eligible: false, Reason: "not_completed"}, course, nil
	}

	if course.RequireApproval {
		approved, err := s.ApprovalRepo.IsApproved(courseID, userID)
		if err != nil {
			return nil, nil, err
		}
		if !approved {
			return &Eligibility{Eligible: false, Reason: "approval_required"}, course, nil
		}
	}

	return &Eligibility{Eligible: true}, course, nil
}

// Render 渲染证书 PDF 到内存缓冲。外部资源（背景、二维码）在写出
// 任何字节之前全部解析完毕，资格不满足时不产生任何输出。
// 返回本次生成的证书编号。
func (s *CertificateService) Render(userID, courseID uint) ([]byte, string, error) {
	eligibility, course, err := s.CheckEligibility(userID, courseID)
	if err != nil {
		return nil, "", err
	}
	if !eligibility.Eligible {
		return nil, "", fmt.Errorf("%w: %s", util.ErrNotEligible, eligibility.Reason)
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, "", util.ErrUserNotFound
	}

	progress, err := s.ProgressRepo.Find(userID, courseID)
	if err != nil {
		return nil, "", err
	}

	certID, err := newCertificateID()
	if err != nil {
		return nil, "", err
	}

	issuedAt := time.Now()
	if progress.CompletionDate != nil {
		issuedAt = *progress.CompletionDate
	}

	courseName := course.CertificateName
	if courseName == "" {
		courseName = course.Title
	}
	grade := course.DefaultGrade
	if grade == "" {
		grade = s.Config.DefaultGrade
	}
	issuerOrg := course.IssuerOrg
	if issuerOrg == "" {
		issuerOrg = s.Config.IssuerOrg
	}

	// 背景与二维码都是 best-effort：拿不到就继续渲染
	background, bgType := s.fetchBackground(course.CertificateTemplate)
	qrPNG := s.buildQR()

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	const pageW, pageH = 297.0, 210.0

	if background != nil {
		opts := fpdf.ImageOptions{ImageType: bgType, ReadDpi: false}
		pdf.RegisterImageOptionsReader("certificate-bg", opts, bytes.NewReader(background))
		pdf.ImageOptions("certificate-bg", 0, 0, pageW, pageH, false, opts, 0, "")
	}

	pdf.SetTextColor(40, 40, 40)

	pdf.SetFont("Helvetica", "B", 34)
	pdf.SetXY(0, 38)
	pdf.CellFormat(pageW, 14, "Certificate of Completion", "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(0, 62)
	pdf.CellFormat(pageW, 8, "This certifies that", "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetXY(0, 74)
	pdf.CellFormat(pageW, 12, user.Name, "", 0, "C", false, 0, "")

	if user.GuardianName != "" {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.SetXY(0, 88)
		pdf.CellFormat(pageW, 6, "Guardian: "+user.GuardianName, "", 0, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(0, 98)
	pdf.CellFormat(pageW, 8, "has successfully completed the course", "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(0, 110)
	pdf.CellFormat(pageW, 10, courseName, "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 13)
	pdf.SetXY(0, 126)
	pdf.CellFormat(pageW, 7, "Grade: "+grade, "", 0, "C", false, 0, "")

	pdf.SetXY(0, 136)
	pdf.CellFormat(pageW, 7, "Issued on "+issuedAt.Format(util.DateFormat), "", 0, "C", false, 0, "")

	if issuerOrg != "" {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetXY(0, 150)
		pdf.CellFormat(pageW, 7, issuerOrg, "", 0, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(12, pageH-16)
	pdf.CellFormat(100, 5, "Certificate ID: "+certID, "", 0, "L", false, 0, "")

	if qrPNG != nil {
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("dashboard-qr", opts, bytes.NewReader(qrPNG))
		pdf.ImageOptions("dashboard-qr", pageW-36, pageH-36, 24, 24, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	monitoring.CertificatesRendered.Inc()
	return buf.Bytes(), certID, nil
}

// fetchBackground 远程优先，带超时；失败回退课程配置外的全局本地模板；
// 再失败返回 nil，证书渲染为纯色背景。
func (s *CertificateService) fetchBackground(courseTemplate string) ([]byte, string) {
	url := courseTemplate
	if url == "" {
		url = s.Config.TemplateURL
	}

	if url != "" && (strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
		resp, err := s.httpClient.Get(url)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				data, err := io.ReadAll(resp.Body)
				if err == nil && len(data) > 0 {
					return data, imageTypeOf(url, data)
				}
			}
		}
		logger.Log.Warn("certificate template fetch failed, falling back to local file",
			zap.String("url", url), zap.Error(err))
	}

	if s.Config.TemplateFile != "" {
		data, err := os.ReadFile(s.Config.TemplateFile)
		if err == nil && len(data) > 0 {
			return data, imageTypeOf(s.Config.TemplateFile, data)
		}
		logger.Log.Warn("certificate local template unavailable, rendering without background",
			zap.String("file", s.Config.TemplateFile), zap.Error(err))
	}

	return nil, ""
}

// buildQR 每次渲染新生成指向学生仪表盘的二维码，失败返回 nil
func (s *CertificateService) buildQR() []byte {
	if s.Config.DashboardURL == "" {
		return nil
	}
	png, err := qrcode.Encode(s.Config.DashboardURL, qrcode.Medium, 256)
	if err != nil {
		logger.Log.Warn("certificate QR generation failed", zap.Error(err))
		return nil
	}
	return png
}

// newCertificateID 8 随机字节，大写十六进制
func newCertificateID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// imageTypeOf fpdf 需要明确的图片类型标识
func imageTypeOf(name string, data []byte) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "PNG"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "JPG"
	}
	if len(data) >= 8 && bytes.HasPrefix(data, []byte("\x89PNG")) {
		return "PNG"
	}
	return "JPG"
}

// Grant / Revoke / ListApprovals 严格模式下的讲师侧资格管理

func (s *CertificateService) GrantApproval(courseID, studentID, grantedBy uint, remark string) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.InstructorID != grantedBy {
		return util.ErrPermissionDenied
	}
	return s.ApprovalRepo.Grant(courseID, studentID, grantedBy, remark)
}

func (s *CertificateService) RevokeApproval(courseID, studentID, revokedBy uint) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.InstructorID != revokedBy {
		return util.ErrPermissionDenied
	}
	return s.ApprovalRepo.Revoke(courseID, studentID)
}

func (s *CertificateService) ListApprovals(courseID, instructorID uint) ([]model.CertificateApproval, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	return s.ApprovalRepo.ListByCourse(courseID)
}
