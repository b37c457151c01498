package model

import "time"

// StudentCourse 学生已购课程（entitlement）。支付捕获成功后创建，
// 只追加不修改；课程被管理员删除时级联清理。
// (user_id, course_id) 唯一索引是防重复入账的权威机制。
// swagger:model StudentCourse
type StudentCourse struct {
	BaseModel
	UserID         uint      `gorm:"index:idx_student_course,unique;not null" json:"userId"`
	CourseID       uint      `gorm:"index:idx_student_course,unique;not null" json:"courseId"`
	Title          string    `gorm:"size:200" json:"title"`
	InstructorID   uint      `json:"instructorId"`
	InstructorName string    `gorm:"size:100" json:"instructorName"`
	CourseImage    string    `gorm:"size:255" json:"courseImage"`
	PurchaseDate   time.Time `json:"dateOfPurchase"`
}

func (StudentCourse) TableName() string {
	return "student_courses"
}
