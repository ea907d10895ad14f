package store

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Repository struct {
	db *gorm.DB
}

// ScanRecord is one completed device scan: the full classified device list
// plus the touchpad selection it produced.
type ScanRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Devices       datatypes.JSON `gorm:"type:jsonb" json:"devices"`
	DeviceCount   int            `json:"device_count"`
	TouchpadFound bool           `json:"touchpad_found"`
	TouchpadPath  string         `json:"touchpad_path,omitempty"`
	TouchpadName  string         `json:"touchpad_name,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (s *ScanRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// VerificationRecord is one touchpad verification run with its per-stage
// outcomes and tri-state result.
type VerificationRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ScanID    uuid.UUID      `gorm:"type:uuid;index" json:"scan_id"`
	Verdict   string         `json:"verdict"` // working, not_working, error
	Code      int            `json:"code"`
	Stages    datatypes.JSON `gorm:"type:jsonb" json:"stages"`
	CreatedAt time.Time      `json:"created_at"`
}

func (v *VerificationRecord) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func NewRepository(dsn string) (*Repository, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ScanRecord{}, &VerificationRecord{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) SaveScan(ctx context.Context, rec *ScanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repository) SaveVerification(ctx context.Context, rec *VerificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repository) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	var scans []ScanRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&scans).Error; err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *Repository) RecentVerifications(ctx context.Context, limit int) ([]VerificationRecord, error) {
	var runs []VerificationRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) LatestVerification(ctx context.Context) (*VerificationRecord, error) {
	var rec VerificationRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// PruneOlderThan removes scan and verification history past the retention
// window.
func (r *Repository) PruneOlderThan(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(clause.Lt{Column: clause.Column{Name: "created_at"}, Value: cutoff}).Delete(&VerificationRecord{}).Error; err != nil {
			return err
		}
		return tx.Where(clause.Lt{Column: clause.Column{Name: "created_at"}, Value: cutoff}).Delete(&ScanRecord{}).Error
	})
	if err != nil {
		slog.Error("history prune failed", "error", err)
	}
	return err
}
