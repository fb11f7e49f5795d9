package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDSN 默认使用共享内存数据库，进程退出后编辑缓冲即被丢弃。
const DefaultDSN = "file:postdesk-buffers?mode=memory&cache=shared"

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 初始化数据库连接并执行自动迁移。
// dsn 为空时将回退到共享内存数据库。
func Init(dsn string) error {
	gdb, err := Open(dsn, logger.Warn)
	if err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Open 打开一个独立的连接并迁移编辑缓冲表，测试中直接使用。
func Open(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	path := strings.TrimSpace(dsn)
	if path == "" {
		path = DefaultDSN
	}

	if isFilePath(path) {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	// 内存库在最后一个连接关闭时消失，保持至少一个空闲连接
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := gdb.AutoMigrate(&EditBuffer{}); err != nil {
		return nil, err
	}

	return gdb, nil
}

func isFilePath(dsn string) bool {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return false
	}
	return true
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
