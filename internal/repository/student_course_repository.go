package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type StudentCourseRepository struct {
	DB *gorm.DB
}

func NewStudentCourseRepository(db *gorm.DB) *StudentCourseRepository {
	return &StudentCourseRepository{DB: db}
}

// HasPurchased 购买门禁：进度查询、证书渲染之前都先过这里
func (r *StudentCourseRepository) HasPurchased(userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.StudentCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *StudentCourseRepository) ListByUser(userID uint) ([]model.StudentCourse, error) {
	var courses []model.StudentCourse
	err := r.DB.Where("user_id = ?", userID).Order("purchase_date DESC").Find(&courses).Error
	return courses, err
}

// AddIfAbsent 已购记录 check-then-set，在支付落账事务内调用。
// 与 (user_id, course_id) 唯一索引配合，重试的 capture 不会重复入账。
func (r *StudentCourseRepository) AddIfAbsent(tx *gorm.DB, sc *model.StudentCourse) error {
	var count int64
	if err := tx.Model(&model.StudentCourse{}).
		Where("user_id = ? AND course_id = ?", sc.UserID, sc.CourseID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(sc).Error
}
