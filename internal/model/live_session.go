package model

import "time"

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCancelled SessionStatus = "cancelled"
	SessionFinished  SessionStatus = "finished"
)

// LiveSession 直播课排期，挂在课程下，已购学生可见
// swagger:model LiveSession
type LiveSession struct {
	BaseModel
	CourseID     uint          `gorm:"index;not null" json:"courseId"`
	InstructorID uint          `gorm:"index;not null" json:"instructorId"`
	Title        string        `gorm:"size:200;not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	StartAt      time.Time     `gorm:"index" json:"startAt"`
	EndAt        time.Time     `json:"endAt"`
	JoinURL      string        `gorm:"size:255" json:"joinUrl"`
	Status       SessionStatus `gorm:"size:20;default:'scheduled'" json:"status"`
}

func (LiveSession) TableName() string {
	return "live_sessions"
}
