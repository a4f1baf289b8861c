package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brassbook/brassbook/pkg/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "brassbook.sqlite3"
const errDBClientNil = "db client is nil"

// ErrTrackNotFound is returned by GetTrack for unknown ids.
var ErrTrackNotFound = errors.New("track not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID           string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title        string `gorm:"index:idx_track_meta,priority:1" json:"title"`
	Artist       string `gorm:"index:idx_track_meta,priority:2" json:"artist"`
	AudioURL     string `json:"audio_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Position     int    `gorm:"index:idx_track_position" json:"-"`
	CreatedAt    time.Time
}

type Comparison struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TrackID       string    `gorm:"type:varchar(64);index:idx_comparison_track" json:"track_id,omitempty"`
	ReferenceName string    `json:"reference_name"`
	RecordingName string    `json:"recording_name"`
	Integral      float64   `json:"integral"`
	CreatedAt     time.Time `gorm:"index:idx_comparison_created" json:"created_at"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("BRASSBOOK_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &Comparison{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// UpsertTrack stores t, replacing any row with the same id. An empty id is
// filled with a fresh UUID, which is returned.
func (c *DBClient) UpsertTrack(t Track) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = utils.GenerateUUID()
	}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "audio_url", "thumbnail_url", "position"}),
	}).Create(&t).Error
	if err != nil {
		return "", fmt.Errorf("upserting track %s: %w", t.ID, err)
	}
	return t.ID, nil
}

// ReplaceTracks swaps the whole catalog in one transaction. Catalog order is
// kept in Position.
func (c *DBClient) ReplaceTracks(tracks []Track) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Track{}).Error; err != nil {
			return fmt.Errorf("clearing tracks: %w", err)
		}
		if len(tracks) == 0 {
			return nil
		}
		rows := make([]Track, len(tracks))
		for i, t := range tracks {
			if t.ID == "" {
				t.ID = utils.GenerateUUID()
			}
			t.Position = i
			rows[i] = t
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("inserting tracks: %w", err)
		}
		return nil
	})
}

func (c *DBClient) ListTracks() ([]Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Track
	if err := c.DB.Order("position ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return rows, nil
}

func (c *DBClient) GetTrack(id string) (*Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var t Track
	err := c.DB.Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track %s: %w", id, err)
	}
	return &t, nil
}

// DeleteTrack removes a track together with its comparison history.
func (c *DBClient) DeleteTrack(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&Comparison{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&Track{}).Error; err != nil {
			return err
		}
		return nil
	})
}

func (c *DBClient) RecordComparison(cmp Comparison) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if cmp.ID == "" {
		cmp.ID = utils.GenerateUUID()
	}
	if err := c.DB.Create(&cmp).Error; err != nil {
		return "", fmt.Errorf("recording comparison: %w", err)
	}
	return cmp.ID, nil
}

// ListComparisons returns the newest comparisons first. limit <= 0 means all.
func (c *DBClient) ListComparisons(limit int) ([]Comparison, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := c.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Comparison
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing comparisons: %w", err)
	}
	return rows, nil
}
