package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindOrCreate 获取 (用户, 课程) 的进度记录，不存在则懒创建。
// (user_id, course_id) 唯一索引保证并发下只会落一条。
func (r *ProgressRepository) FindOrCreate(userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Where(model.CourseProgress{UserID: userID, CourseID: courseID}).
		FirstOrCreate(&progress).Error
	return &progress, err
}

func (r *ProgressRepository) Find(userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Preload("LecturesProgress", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// UpsertLecture 标记单讲已观看。冲突键是 (user_id, course_id, lecture_id)
// 唯一索引：并发的重复标记收敛为一次 update，这是权威去重机制。
func (r *ProgressRepository) UpsertLecture(progressID, userID, courseID, lectureID uint) error {
	now := time.Now()
	entry := model.LectureProgress{
		ProgressID: progressID,
		UserID:     userID,
		CourseID:   courseID,
		LectureID:  lectureID,
		Viewed:     true,
		DateViewed: &now,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}, {Name: "lecture_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"viewed", "date_viewed", "updated_at"}),
	}).Create(&entry).Error
}

// ViewedLectureIDs 返回该进度下已观看的讲座ID
func (r *ProgressRepository) ViewedLectureIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.LectureProgress{}).
		Where("user_id = ? AND course_id = ? AND viewed = ?", userID, courseID, true).
		Pluck("lecture_id", &ids).Error
	return ids, err
}

// MarkCompleted 完课是单向迁移，只在未完成时写入时间戳
func (r *ProgressRepository) MarkCompleted(progressID uint, at time.Time) error {
	return r.DB.Model(&model.CourseProgress{}).
		Where("id = ? AND completed = ?", progressID, false).
		Updates(map[string]interface{}{"completed": true, "completion_date": at}).
		Error
}

// Reset 清空全部单讲记录和完成状态（重学）
func (r *ProgressRepository) Reset(progress *model.CourseProgress) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("progress_id = ?", progress.ID).
			Delete(&model.LectureProgress{}).Error; err != nil {
			return err
		}
		return tx.Model(&model.CourseProgress{}).
			Where("id = ?", progress.ID).
			Updates(map[string]interface{}{"completed": false, "completion_date": nil}).
			Error
	})
}
