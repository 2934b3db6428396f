package journal

import (
	"context"
	"drivechat/app/config"
	"log/slog"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// Entry is one actuation attempt
type Entry struct {
	ID        uint      `json:"id"`
	Origin    string    `json:"origin"`
	Right     string    `json:"right_motors"`
	Left      string    `json:"left_motors"`
	Speed     string    `json:"speed"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

type commandRow struct {
	ID        uint      `gorm:"primaryKey"`
	Origin    string    `gorm:"size:191;index"`
	Right     string    `gorm:"size:32"`
	Left      string    `gorm:"size:32"`
	Speed     string    `gorm:"size:32"`
	Message   string    `gorm:"size:255;not null"`
	Status    string    `gorm:"size:16;not null"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (commandRow) TableName() string {
	return "commands"
}

// Service persists actuation attempts. A zero driver disables it, Record and Recent become no-ops.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.Journal.Driver == "" {
		slog.Info("Command journal disabled")
		return &Service{now: time.Now}, nil
	}

	svc, err := Open(cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return nil, err
	}

	slog.Info("Command journal enabled", slog.String("driver", cfg.Journal.Driver))

	return svc, nil
}

func Open(driver, dsn string) (*Service, error) {
	db, err := openGorm(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&commandRow{}); err != nil {
		return nil, oops.In("journal").Wrapf(err, "failed to migrate")
	}

	return &Service{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *Service) Enabled() bool {
	return s.db != nil
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s.db == nil {
		return nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	row := commandRow{
		Origin:    entry.Origin,
		Right:     entry.Right,
		Left:      entry.Left,
		Speed:     entry.Speed,
		Message:   entry.Message,
		Status:    entry.Status,
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return oops.
			In("journal").
			With("origin", entry.Origin).
			Wrapf(err, "failed to record command")
	}

	return nil
}

// Recent returns the newest entries first
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return []Entry{}, nil
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var rows []commandRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, oops.In("journal").Wrapf(err, "failed to list commands")
	}

	result := make([]Entry, 0, len(rows))
	for _, row := range rows {
		result = append(result, Entry{
			ID:        row.ID,
			Origin:    row.Origin,
			Right:     row.Right,
			Left:      row.Left,
			Speed:     row.Speed,
			Message:   row.Message,
			Status:    row.Status,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt,
		})
	}

	return result, nil
}

func (s *Service) Shutdown() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
