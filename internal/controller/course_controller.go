package controller

import (
	"errors"
	"strconv"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService      *service.CourseService
	CertificateService *service.CertificateService
}

func NewCourseController(courseService *service.CourseService, certificateService *service.CertificateService) *CourseController {
	return &CourseController{
		CourseService:      courseService,
		CertificateService: certificateService,
	}
}

// CourseRequest 课程创建与更新载荷
// swagger:model CourseRequest
type CourseRequest struct {
	Title               string `json:"title" binding:"required"`
	Subtitle            string `json:"subtitle"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	Level               string `json:"level"`
	Language            string `json:"language"`
	Image               string `json:"image"`
	Price               int64  `json:"price" binding:"min=0"`
	Currency            string `json:"currency"`
	CertificateEnabled  bool   `json:"certificateEnabled"`
	CertificateName     string `json:"certificateName"`
	CertificateTemplate string `json:"certificateTemplate"`
	IssuerOrg           string `json:"issuerOrg"`
	DefaultGrade        string `json:"defaultGrade"`
	RequireApproval     bool   `json:"requireApproval"`
}

func (req *CourseRequest) toModel() *model.Course {
	return &model.Course{
		Title:               req.Title,
		Subtitle:            req.Subtitle,
		Description:         req.Description,
		Category:            req.Category,
		Level:               req.Level,
		Language:            req.Language,
		Image:               req.Image,
		Price:               req.Price,
		Currency:            req.Currency,
		CertificateEnabled:  req.CertificateEnabled,
		CertificateName:     req.CertificateName,
		CertificateTemplate: req.CertificateTemplate,
		IssuerOrg:           req.IssuerOrg,
		DefaultGrade:        req.DefaultGrade,
		RequireApproval:     req.RequireApproval,
	}
}

// Create godoc
// @Summary 创建课程
// @Description 讲师创建新课程，初始为未发布状态
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/instructor/courses [post]
func (c *CourseController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := req.toModel()
	instructor := &model.User{Name: claims.Name}
	instructor.ID = claims.UserID
	if err := c.CourseService.Create(instructor, course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// Update godoc
// @Summary 更新课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body CourseRequest true "课程信息"
// @Success 200 {object} util.Response{data=model.Course} "更新成功"
// @Failure 403 {object} util.Response "非本人课程"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/instructor/courses/{id} [put]
func (c *CourseController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	var req CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := req.toModel()
	course.ID = courseID
	if err := c.CourseService.Update(claims.UserID, course); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// LectureRequest 大纲中的一讲
type LectureRequest struct {
	Title       string `json:"title" binding:"required"`
	VideoURL    string `json:"videoUrl"`
	FreePreview bool   `json:"freePreview"`
	Sort        int    `json:"sort"`
}

// CurriculumRequest 大纲整体替换载荷
type CurriculumRequest struct {
	Lectures []LectureRequest `json:"lectures" binding:"required,dive"`
}

// ReplaceCurriculum godoc
// @Summary 替换课程大纲
// @Description 整体替换课程的讲座列表，完课判定按新大纲重新计算
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body CurriculumRequest true "大纲"
// @Success 200 {object} util.Response "替换成功"
// @Failure 403 {object} util.Response "非本人课程"
// @Router /api/instructor/courses/{id}/curriculum [put]
func (c *CourseController) ReplaceCurriculum(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	var req CurriculumRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lectures := make([]model.Lecture, 0, len(req.Lectures))
	for _, l := range req.Lectures {
		lectures = append(lectures, model.Lecture{
			Title:       l.Title,
			VideoURL:    l.VideoURL,
			FreePreview: l.FreePreview,
			Sort:        l.Sort,
		})
	}

	if err := c.CourseService.ReplaceCurriculum(claims.UserID, courseID, lectures); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// PublishRequest 发布载荷，publishAt 非空时为定时发布
type PublishRequest struct {
	PublishAt *time.Time `json:"publishAt"`
}

// Publish godoc
// @Summary 发布课程
// @Description 立即发布或定时发布课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body PublishRequest false "定时发布时间"
// @Success 200 {object} util.Response{data=model.Course} "发布成功"
// @Failure 403 {object} util.Response "非本人课程"
// @Router /api/instructor/courses/{id}/publish [post]
func (c *CourseController) Publish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	var req PublishRequest
	_ = ctx.ShouldBindJSON(&req)

	course, err := c.CourseService.Publish(claims.UserID, courseID, req.PublishAt)
	if err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// Unpublish godoc
// @Summary 下架课程
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response "下架成功"
// @Router /api/instructor/courses/{id}/publish [delete]
func (c *CourseController) Unpublish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	if err := c.CourseService.Unpublish(claims.UserID, courseID); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListMine godoc
// @Summary 讲师课程列表
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Course} "Success"
// @Router /api/instructor/courses [get]
func (c *CourseController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courses, err := c.CourseService.ListByInstructor(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetMine godoc
// @Summary 讲师课程详情
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course} "Success"
// @Router /api/instructor/courses/{id} [get]
func (c *CourseController) GetMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	course, err := c.CourseService.GetOwned(claims.UserID, courseID)
	if err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ListStudents godoc
// @Summary 课程名册
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.CourseStudent} "Success"
// @Router /api/instructor/courses/{id}/students [get]
func (c *CourseController) ListStudents(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	students, err := c.CourseService.ListStudents(claims.UserID, courseID)
	if err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

// List godoc
// @Summary 课程目录
// @Description 学生端已发布课程列表，支持筛选、搜索、排序与分页
// @Tags 课程
// @Produce  json
// @Param   category query string false "分类"
// @Param   level query string false "难度"
// @Param   language query string false "语言"
// @Param   search query string false "关键词"
// @Param   sortBy query string false "排序 price-asc/price-desc/newest"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/courses [get]
func (c *CourseController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "12"))

	filter := repository.CourseFilter{
		Category: ctx.Query("category"),
		Level:    ctx.Query("level"),
		Language: ctx.Query("language"),
		Search:   ctx.Query("search"),
		SortBy:   ctx.Query("sortBy"),
		Page:     page,
		Limit:    limit,
	}

	courses, total, err := c.CourseService.ListPublished(filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary 课程详情
// @Description 学生端课程详情，未购买用户只能看到免费试看讲座的视频地址
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseDetail} "Success"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) Get(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))

	var userID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		userID = claims.UserID
	}

	detail, err := c.CourseService.GetDetail(courseID, userID)
	if err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// ListPurchased godoc
// @Summary 已购课程列表
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.StudentCourse} "Success"
// @Router /api/student/courses [get]
func (c *CourseController) ListPurchased(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courses, err := c.CourseService.ListPurchased(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// Delete godoc
// @Summary 删除课程
// @Description 管理员删除课程并级联清理讲座、名册与进度数据
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/admin/courses/{id} [delete]
func (c *CourseController) Delete(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("id"))
	if err := c.CourseService.Delete(courseID); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ApprovalRequest 证书资格授予载荷
type ApprovalRequest struct {
	StudentID uint   `json:"studentId" binding:"required"`
	Remark    string `json:"remark"`
}

// GrantApproval godoc
// @Summary 授予证书资格
// @Description 严格模式课程下，讲师为完课学生显式授予证书资格
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body ApprovalRequest true "学生"
// @Success 200 {object} util.Response "授予成功"
// @Router /api/instructor/courses/{id}/approvals [post]
func (c *CourseController) GrantApproval(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	var req ApprovalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.CertificateService.GrantApproval(courseID, req.StudentID, claims.UserID, req.Remark); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RevokeApproval godoc
// @Summary 撤销证书资格
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   studentId path int true "学生ID"
// @Success 200 {object} util.Response "撤销成功"
// @Router /api/instructor/courses/{id}/approvals/{studentId} [delete]
func (c *CourseController) RevokeApproval(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))
	studentID := util.MustParseUint(ctx.Param("studentId"))

	if err := c.CertificateService.RevokeApproval(courseID, studentID, claims.UserID); err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListApprovals godoc
// @Summary 证书资格列表
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.CertificateApproval} "Success"
// @Router /api/instructor/courses/{id}/approvals [get]
func (c *CourseController) ListApprovals(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	approvals, err := c.CertificateService.ListApprovals(courseID, claims.UserID)
	if err != nil {
		respondCourseError(ctx, err)
		return
	}
	util.Success(ctx, approvals)
}

func respondCourseError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrNotPurchased):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
