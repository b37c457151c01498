package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

// FindByID 带大纲返回课程，大纲按 sort 排序
func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.Preload("Lectures", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort ASC, id ASC")
	}).First(&course, id).Error
	return &course, err
}

// CurriculumIDs 返回课程当前大纲的讲座ID集合。完课判定每次调用这里，
// 不缓存：讲师随时可能增删讲座，分母必须是实时的。
func (r *CourseRepository) CurriculumIDs(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Lecture{}).
		Where("course_id = ?", courseID).
		Order("sort ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

type CourseFilter struct {
	Category string
	Level    string
	Language string
	Search   string
	SortBy   string // price-asc / price-desc / newest
	Page     int
	Limit    int
}

// ListPublished 学生端课程列表
func (r *CourseRepository) ListPublished(f CourseFilter) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.Model(&model.Course{}).Where("is_published = ?", true)
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Level != "" {
		query = query.Where("level = ?", f.Level)
	}
	if f.Language != "" {
		query = query.Where("language = ?", f.Language)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("title LIKE ? OR subtitle LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.SortBy {
	case "price-asc":
		query = query.Order("price ASC")
	case "price-desc":
		query = query.Order("price DESC")
	default:
		query = query.Order("created_at DESC")
	}

	if f.Page > 0 && f.Limit > 0 {
		query = query.Offset((f.Page - 1) * f.Limit).Limit(f.Limit)
	}

	err := query.Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByInstructor(instructorID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

// ReplaceCurriculum 整体替换课程大纲
func (r *CourseRepository) ReplaceCurriculum(courseID uint, lectures []model.Lecture) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.Lecture{}).Error; err != nil {
			return err
		}
		for i := range lectures {
			lectures[i].ID = 0
			lectures[i].CourseID = courseID
			if lectures[i].Sort == 0 {
				lectures[i].Sort = i + 1
			}
		}
		if len(lectures) == 0 {
			return nil
		}
		return tx.Create(&lectures).Error
	})
}

func (r *CourseRepository) SetPublished(courseID uint, published bool) error {
	return r.DB.Model(&model.Course{}).
		Where("id = ?", courseID).
		Updates(map[string]interface{}{"is_published": published, "publish_at": nil}).
		Error
}

// PublishScheduled 发布所有到期的定时发布课程，返回发布出去的课程
func (r *CourseRepository) PublishScheduled(now time.Time) ([]model.Course, error) {
	var due []model.Course
	err := r.DB.Where("is_published = ? AND publish_at IS NOT NULL AND publish_at <= ?", false, now).
		Find(&due).Error
	if err != nil || len(due) == 0 {
		return nil, err
	}

	ids := make([]uint, 0, len(due))
	for _, c := range due {
		ids = append(ids, c.ID)
	}
	err = r.DB.Model(&model.Course{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"is_published": true, "publish_at": nil}).
		Error
	return due, err
}

// Delete 删除课程并级联清理其讲座、名册、已购记录和进度（管理员操作）
func (r *CourseRepository) Delete(courseID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.Lecture{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.CourseStudent{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.StudentCourse{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.LectureProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.CourseProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.CertificateApproval{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("course_id = ?", courseID).Delete(&model.LiveSession{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, courseID).Error
	})
}

// AddStudent 名册 add-if-absent，在调用方事务内执行
func (r *CourseRepository) AddStudent(tx *gorm.DB, cs *model.CourseStudent) error {
	var count int64
	if err := tx.Model(&model.CourseStudent{}).
		Where("course_id = ? AND user_id = ?", cs.CourseID, cs.UserID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(cs).Error
}

func (r *CourseRepository) ListStudents(courseID uint) ([]model.CourseStudent, error) {
	var students []model.CourseStudent
	err := r.DB.Where("course_id = ?", courseID).Order("enrolled_at ASC").Find(&students).Error
	return students, err
}
