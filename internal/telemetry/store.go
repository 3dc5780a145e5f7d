package telemetry

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the telemetry database connection.
type DB struct {
	*gorm.DB
}

// Open connects to (creating if absent) the sqlite file at path and
// auto-migrates the episode/slot schema.
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telemetry database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Episode{}, &SlotSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate telemetry database: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Store provides data access methods over the telemetry database.
type Store struct {
	db *DB
}

// NewStore wraps db in a Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// SaveEpisode persists one completed episode's flat record.
func (s *Store) SaveEpisode(ep *Episode) error {
	return s.db.Create(ep).Error
}

// GetEpisode retrieves one episode by id.
func (s *Store) GetEpisode(id string) (*Episode, error) {
	var ep Episode
	if err := s.db.First(&ep, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ep, nil
}

// ListEpisodes lists every episode, most recent first.
func (s *Store) ListEpisodes() ([]Episode, error) {
	var eps []Episode
	err := s.db.Order("created_at DESC").Find(&eps).Error
	return eps, err
}

// SaveSlotSnapshot persists one slot's statistics.
func (s *Store) SaveSlotSnapshot(snap *SlotSnapshot) error {
	return s.db.Create(snap).Error
}

// BatchSaveSlotSnapshots persists many slot snapshots in one batch insert.
func (s *Store) BatchSaveSlotSnapshots(snaps []SlotSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return s.db.CreateInBatches(snaps, 100).Error
}

// GetSlotSnapshots retrieves every slot snapshot for an episode, in slot order.
func (s *Store) GetSlotSnapshots(episodeID string) ([]SlotSnapshot, error) {
	var snaps []SlotSnapshot
	err := s.db.Where("episode_id = ?", episodeID).Order("slot ASC").Find(&snaps).Error
	return snaps, err
}
