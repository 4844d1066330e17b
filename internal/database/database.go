package database

import (
	"fmt"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/document"
	"github.com/Oniqq60/task_system_control/internal/task"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open подключается к базе, выбранной через DB_DRIVER.
func Open(conf cfg.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.DBDriver {
	case "postgres":
		dialector = postgres.Open(conf.PostgresDSN())
	case "sqlite":
		dialector = sqlite.Open(conf.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", conf.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("init sql DB: %w", err)
	}
	if conf.DBDriver == "sqlite" {
		// sqlite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&task.Task{},
		&task.History{},
		&document.Document{},
		&auth.ResetToken{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
