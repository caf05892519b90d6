package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*SQLStore)(nil)

const DefaultName = "current"

// TournamentSnapshot is the single row holding the live snapshot.
type TournamentSnapshot struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Version   int64     `gorm:"not null"`
	Payload   string    `gorm:"type:text;not null"`
	SavedAt   time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type SQLStore struct {
	DB   *gorm.DB
	Name string
}

// OpenPostgres connects with the pgx-backed postgres driver and migrates the
// snapshot table.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db)
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&TournamentSnapshot{}); err != nil {
		return nil, err
	}
	return &SQLStore{DB: db, Name: DefaultName}, nil
}

func (s *SQLStore) Load(ctx context.Context) (Snapshot, error) {
	var row TournamentSnapshot
	err := s.DB.WithContext(ctx).First(&row, "name = ?", s.Name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Version: row.Version, Payload: []byte(row.Payload), SavedAt: row.SavedAt}, nil
}

func (s *SQLStore) Save(ctx context.Context, snap Snapshot) error {
	row := TournamentSnapshot{
		Name:    s.Name,
		Version: snap.Version,
		Payload: string(snap.Payload),
		SavedAt: snap.SavedAt,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "payload", "saved_at", "updated_at"}),
	}).Create(&row).Error
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
