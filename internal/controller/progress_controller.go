package controller

import (
	"errors"
	"fmt"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService    *service.ProgressService
	CertificateService *service.CertificateService
}

func NewProgressController(progressService *service.ProgressService, certificateService *service.CertificateService) *ProgressController {
	return &ProgressController{
		ProgressService:    progressService,
		CertificateService: certificateService,
	}
}

// MarkViewedRequest 标记讲座已观看
// swagger:model MarkViewedRequest
type MarkViewedRequest struct {
	LectureID uint `json:"lectureId" binding:"required"`
}

// MarkViewed godoc
// @Summary 标记讲座已观看
// @Description 记录观看并重新判定完课，看完当前大纲全部讲座即完课。重复标记幂等。
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Param   body body MarkViewedRequest true "讲座"
// @Success 200 {object} util.Response{data=model.CourseProgress} "Success"
// @Failure 404 {object} util.Response "课程或讲座不存在"
// @Router /api/student/courses/{courseId}/progress [post]
func (c *ProgressController) MarkViewed(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req MarkViewedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.MarkLectureViewed(claims.UserID, courseID, req.LectureID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrLectureNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, progress)
}

// GetProgress godoc
// @Summary 课程学习进度
// @Description 未购买时返回 isPurchased=false 且不携带课程内容
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressView} "Success"
// @Router /api/student/courses/{courseId}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	view, err := c.ProgressService.GetProgress(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, view)
}

// ResetProgress godoc
// @Summary 重置学习进度
// @Description 清空观看记录和完成状态，重新学习
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.CourseProgress} "Success"
// @Failure 404 {object} util.Response "暂无进度记录"
// @Router /api/student/courses/{courseId}/progress/reset [post]
func (c *ProgressController) ResetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	progress, err := c.ProgressService.ResetProgress(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrProgressNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, progress)
}

// CheckCertificate godoc
// @Summary 证书资格查询
// @Description 返回是否可领取证书及不可领取的原因
// @Tags 证书
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.Eligibility} "Success"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/student/courses/{courseId}/certificate/eligibility [get]
func (c *ProgressController) CheckCertificate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	eligibility, _, err := c.CertificateService.CheckEligibility(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, eligibility)
}

// DownloadCertificate godoc
// @Summary 下载完课证书
// @Description 渲染并下载证书 PDF。资格不满足时返回 403，不输出任何文件内容。
// @Tags 证书
// @Produce  application/pdf
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {file} binary "PDF 证书"
// @Failure 403 {object} util.Response "不满足领取条件"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/student/courses/{courseId}/certificate [get]
func (c *ProgressController) DownloadCertificate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	pdfBytes, certID, err := c.CertificateService.Render(claims.UserID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrNotEligible):
			util.Error(ctx, 403, err.Error())
		case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrUserNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, certID))
	ctx.Data(200, util.MimePDF, pdfBytes)
}
