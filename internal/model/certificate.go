package model

// CertificateApproval 证书资格授予记录。仅当课程开启 RequireApproval 时参与
// 资格判定；讲师可撤销（Approved 置 false），记录保留。
// swagger:model CertificateApproval
type CertificateApproval struct {
	BaseModel
	CourseID  uint   `gorm:"index:idx_course_user_approval,unique;not null" json:"courseId"`
	UserID    uint   `gorm:"index:idx_course_user_approval,unique;not null" json:"userId"`
	Approved  bool   `gorm:"default:true" json:"approved"`
	GrantedBy uint   `json:"grantedBy"`
	Remark    string `gorm:"size:255" json:"remark"`
}

func (CertificateApproval) TableName() string {
	return "certificate_approvals"
}
