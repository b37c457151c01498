package model

import "time"

// CourseProgress 每个 (学生, 课程) 一条，首次标记观看时懒创建。
// Completed 是派生状态：当前大纲的每一讲都有 viewed=true 记录时为真。
// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID         uint       `gorm:"index:idx_user_course,unique;not null" json:"userId"`
	CourseID       uint       `gorm:"index:idx_user_course,unique;not null" json:"courseId"`
	Completed      bool       `gorm:"default:false" json:"completed"`
	CompletionDate *time.Time `json:"completionDate"`

	LecturesProgress []LectureProgress `gorm:"foreignKey:ProgressID" json:"lecturesProgress,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progresses"
}

// LectureProgress 单讲观看记录。(user_id, course_id, lecture_id) 唯一索引
// 是并发标记下去重的权威机制，应用层 upsert 只是快路径。
// swagger:model LectureProgress
type LectureProgress struct {
	BaseModel
	ProgressID uint       `gorm:"index;not null" json:"-"`
	UserID     uint       `gorm:"index:idx_user_course_lecture,unique;not null" json:"userId"`
	CourseID   uint       `gorm:"index:idx_user_course_lecture,unique;not null" json:"courseId"`
	LectureID  uint       `gorm:"index:idx_user_course_lecture,unique;not null" json:"lectureId"`
	Viewed     bool       `gorm:"default:false" json:"viewed"`
	DateViewed *time.Time `json:"dateViewed"`
}

func (LectureProgress) TableName() string {
	return "lecture_progresses"
}
