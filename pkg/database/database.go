package database

import (
	"fmt"
	"log"

	"lms_backend/internal/config"
	"lms_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	return db, nil
}

// Migrate 执行全部表结构迁移，测试环境（sqlite）复用同一份列表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lecture{},
		&model.CourseStudent{},
		&model.StudentCourse{},
		&model.CourseProgress{},
		&model.LectureProgress{},
		&model.Order{},
		&model.CertificateApproval{},
		&model.Notification{},
		&model.LiveSession{},
	)
}
