package controller

import (
	"io"
	"path/filepath"
	"strings"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MediaController struct {
	StorageService *service.StorageService
}

func NewMediaController(storageService *service.StorageService) *MediaController {
	return &MediaController{StorageService: storageService}
}

// UploadImage godoc
// @Summary 上传图片
// @Description 上传课程封面、头像等图片素材
// @Tags 媒体
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object} "上传成功"
// @Failure 400 {object} util.Response "文件类型不允许"
// @Router /api/media/images [post]
func (c *MediaController) UploadImage(ctx *gin.Context) {
	c.upload(ctx, "image", []string{util.MimeImage}, util.AllowedImageExtensions)
}

// UploadVideo godoc
// @Summary 上传视频
// @Description 上传讲座视频
// @Tags 媒体
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "视频文件"
// @Success 200 {object} util.Response{data=object} "上传成功"
// @Failure 400 {object} util.Response "文件类型不允许"
// @Router /api/media/videos [post]
func (c *MediaController) UploadVideo(ctx *gin.Context) {
	c.upload(ctx, "video", []string{util.MimeVideo, util.MimeOctetStream}, util.AllowedVideoExtensions)
}

// Delete godoc
// @Summary 删除媒体文件
// @Description 按对象键删除已上传的媒体文件，键取自上传返回地址的路径部分
// @Tags 媒体
// @Produce  json
// @Security ApiKeyAuth
// @Param   key query string true "对象键"
// @Success 200 {object} util.Response "删除成功"
// @Failure 400 {object} util.Response "对象键缺失或非法"
// @Router /api/media [delete]
func (c *MediaController) Delete(ctx *gin.Context) {
	key := ctx.Query("key")
	if key == "" || strings.Contains(key, "..") {
		util.BadRequest(ctx, "对象键缺失或非法")
		return
	}

	if err := c.StorageService.Delete(ctx.Request.Context(), key); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

func (c *MediaController) upload(ctx *gin.Context, category string, allowedTypes, allowedExts []string) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	allowed := false
	for _, e := range allowedExts {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		util.BadRequest(ctx, "不支持的文件扩展名: "+ext)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, allowedTypes)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	// MIME 嗅探消费了文件开头，回到起始位置再上传
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	url, err := c.StorageService.UploadMedia(ctx.Request.Context(), category, fileHeader.Filename, file, fileHeader.Size, mimeType)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"url": url, "contentType": mimeType})
}
