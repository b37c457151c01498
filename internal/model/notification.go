package model

type NotificationType string

const (
	NotifyPaymentSuccess  NotificationType = "payment_success"
	NotifyCourseCompleted NotificationType = "course_completed"
	NotifyCoursePublished NotificationType = "course_published"
	NotifySessionCreated  NotificationType = "session_created"
)

// Notification 站内通知。由状态迁移触发写入，写入和邮件发送都是
// fire-and-forget，失败不回滚主流程。
// swagger:model Notification
type Notification struct {
	BaseModel
	UserID uint             `gorm:"index;not null" json:"userId"`
	Type   NotificationType `gorm:"size:30;index" json:"type"`
	Title  string           `gorm:"size:200" json:"title"`
	Body   string           `gorm:"type:text" json:"body"`
	Read   bool             `gorm:"default:false" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}
