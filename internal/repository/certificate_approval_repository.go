package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateApprovalRepository struct {
	DB *gorm.DB
}

func NewCertificateApprovalRepository(db *gorm.DB) *CertificateApprovalRepository {
	return &CertificateApprovalRepository{DB: db}
}

// IsApproved (课程, 学生) 是否存在未撤销的授予记录
func (r *CertificateApprovalRepository) IsApproved(courseID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.CertificateApproval{}).
		Where("course_id = ? AND user_id = ? AND approved = ?", courseID, userID, true).
		Count(&count).Error
	return count > 0, err
}

// Grant 授予或恢复资格，(course_id, user_id) 唯一
func (r *CertificateApprovalRepository) Grant(courseID, userID, grantedBy uint, remark string) error {
	var existing model.CertificateApproval
	err := r.DB.Where("course_id = ? AND user_id = ?", courseID, userID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.DB.Create(&model.CertificateApproval{
			CourseID:  courseID,
			UserID:    userID,
			Approved:  true,
			GrantedBy: grantedBy,
			Remark:    remark,
		}).Error
	}
	if err != nil {
		return err
	}
	existing.Approved = true
	existing.GrantedBy = grantedBy
	existing.Remark = remark
	return r.DB.Save(&existing).Error
}

// Revoke 撤销资格，记录保留
func (r *CertificateApprovalRepository) Revoke(courseID, userID uint) error {
	return r.DB.Model(&model.CertificateApproval{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Update("approved", false).
		Error
}

func (r *CertificateApprovalRepository) ListByCourse(courseID uint) ([]model.CertificateApproval, error) {
	var approvals []model.CertificateApproval
	err := r.DB.Where("course_id = ?", courseID).Find(&approvals).Error
	return approvals, err
}
