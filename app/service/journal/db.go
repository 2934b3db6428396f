package journal

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sqliteDriver "github.com/glebarez/sqlite"
	"github.com/samber/oops"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openGorm(driver, dsn string) (*gorm.DB, error) {
	errBuilder := oops.In("journal").With("driver", driver)

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errBuilder.Errorf("dsn is required")
	}

	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch driver {
	case "sqlite":
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, errBuilder.Wrap(err)
		}

		db, err := gorm.Open(sqliteDriver.Open(dsn), gormCfg)
		if err != nil {
			return nil, errBuilder.Wrapf(err, "failed to open sqlite")
		}

		// sqlite serializes writers, in-memory databases also live on a single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errBuilder.Wrap(err)
		}
		sqlDB.SetMaxOpenConns(1)

		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, errBuilder.Wrapf(err, "failed to open postgres")
		}
		return db, nil
	default:
		return nil, errBuilder.Errorf("unsupported driver %q", driver)
	}
}

func ensureSQLiteDirectory(dsn string) error {
	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.Errorf("create sqlite db dir: %w", err)
	}

	return nil
}

func sqliteFilePath(dsn string) (string, bool) {
	raw := strings.TrimSpace(dsn)
	lower := strings.ToLower(raw)

	if raw == "" || lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return "", false
	}

	if !strings.HasPrefix(lower, "file:") {
		return stripQuery(raw), true
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return stripQuery(strings.TrimPrefix(raw, "file:")), true
	}
	if strings.EqualFold(parsed.Query().Get("mode"), "memory") {
		return "", false
	}
	if parsed.Path != "" {
		return parsed.Path, true
	}
	if parsed.Opaque != "" {
		return stripQuery(parsed.Opaque), true
	}

	return "", false
}

func stripQuery(v string) string {
	if i := strings.Index(v, "?"); i >= 0 {
		return v[:i]
	}
	return v
}
