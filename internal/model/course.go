package model

import "time"

// Course 课程主体。课程大纲（Lectures）的长度是完课判定的分母，
// 判定时永远取当前大纲，不做缓存。
// swagger:model Course
type Course struct {
	BaseModel
	InstructorID   uint   `gorm:"index;not null" json:"instructorId"`
	InstructorName string `gorm:"size:100" json:"instructorName"`
	Title          string `gorm:"size:200;not null" json:"title"`
	Subtitle       string `gorm:"size:255" json:"subtitle"`
	Description    string `gorm:"type:text" json:"description"`
	Category       string `gorm:"size:50;index" json:"category"`
	Level          string `gorm:"size:20" json:"level"`
	Language       string `gorm:"size:20" json:"language"`
	Image          string `gorm:"size:255" json:"image"`
	// 价格，货币最小单位（如 INR 的 paise）
	Price    int64  `gorm:"not null;default:0" json:"price"`
	Currency string `gorm:"size:10;default:'INR'" json:"currency"`

	IsPublished bool       `gorm:"default:false;index" json:"isPublished"`
	PublishAt   *time.Time `json:"publishAt"` // 定时发布，后台任务扫描

	// 证书配置
	CertificateEnabled  bool   `gorm:"default:false" json:"certificateEnabled"`
	CertificateName     string `gorm:"size:200" json:"certificateName"` // 证书上印刷的课程名，空则用 Title
	CertificateTemplate string `gorm:"size:255" json:"certificateTemplate"`
	IssuerOrg           string `gorm:"size:200" json:"issuerOrg"`
	DefaultGrade        string `gorm:"size:20" json:"defaultGrade"`
	// 严格模式：完课之外还需讲师显式授予证书资格
	RequireApproval bool `gorm:"default:false" json:"requireApproval"`

	Lectures []Lecture       `gorm:"foreignKey:CourseID" json:"curriculum,omitempty"`
	Students []CourseStudent `gorm:"foreignKey:CourseID" json:"students,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Lecture 课程大纲中的一讲
// swagger:model Lecture
type Lecture struct {
	BaseModel
	CourseID    uint   `gorm:"index;not null" json:"courseId"`
	Title       string `gorm:"size:200;not null" json:"title"`
	VideoURL    string `gorm:"size:255" json:"videoUrl"`
	FreePreview bool   `gorm:"default:false" json:"freePreview"`
	Sort        int    `gorm:"default:0" json:"sort"`
}

func (Lecture) TableName() string {
	return "lectures"
}

// CourseStudent 课程名册：支付完成后 add-if-absent 写入，
// 唯一索引兜底防止重试导致的重复入册
type CourseStudent struct {
	BaseModel
	CourseID   uint      `gorm:"index:idx_course_student,unique;not null" json:"courseId"`
	UserID     uint      `gorm:"index:idx_course_student,unique;not null" json:"userId"`
	UserName   string    `gorm:"size:100" json:"userName"`
	UserEmail  string    `gorm:"size:100" json:"userEmail"`
	PaidAmount int64     `json:"paidAmount"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (CourseStudent) TableName() string {
	return "course_students"
}
