package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects and migrates the brackets table.
func OpenPostgres(dsn string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db, log)
}

// NewGormStore wraps an already opened database.
func NewGormStore(db *gorm.DB, log *zap.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&Bracket{}); err != nil {
		return nil, fmt.Errorf("migrate brackets: %w", err)
	}
	return &GormStore{db: db, logger: log}, nil
}

func (s *GormStore) CreateBracket(ctx context.Context, players [4]string) (uuid.UUID, error) {
	b := Bracket{
		ID:      uuid.New(),
		Player1: players[0],
		Player2: players[1],
		Player3: players[2],
		Player4: players[3],
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return uuid.Nil, fmt.Errorf("create bracket: %w", err)
	}
	s.logger.Info("bracket created", zap.Stringer("bracket_id", b.ID), zap.Strings("players", players[:]))
	return b.ID, nil
}

func (s *GormStore) GetBracket(ctx context.Context, id uuid.UUID) (Bracket, error) {
	var b Bracket
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Bracket{}, ErrBracketNotFound
	}
	if err != nil {
		return Bracket{}, fmt.Errorf("get bracket: %w", err)
	}
	return b, nil
}

func (s *GormStore) RecordWinner(ctx context.Context, id uuid.UUID, matchNumber int, nickname string) error {
	col, err := winnerColumn(matchNumber)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&Bracket{}).Where("id = ?", id).Update(col, nickname)
	if res.Error != nil {
		return fmt.Errorf("record winner: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBracketNotFound
	}
	s.logger.Info("bracket winner recorded",
		zap.Stringer("bracket_id", id),
		zap.Int("match_number", matchNumber),
		zap.String("winner", nickname))
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
