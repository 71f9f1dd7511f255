package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"numerai-reports/apiclient"
	"numerai-reports/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordStore keeps normalized rounds in Postgres.
type GormRecordStore struct {
	DB *gorm.DB
}

func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{DB: db}
}

// AutoMigrate creates the tables the store uses.
func (s *GormRecordStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.PerformanceEntry{},
		&models.RoundSnapshot{},
		&models.Tournament{},
		&models.SyncRun{},
	)
}

// LoadRound returns a stored round. A round without a snapshot row is treated
// as absent even if stray entries exist.
func (s *GormRecordStore) LoadRound(ctx context.Context, round int) ([]models.PerformanceEntry, bool, error) {
	var snap models.RoundSnapshot
	err := s.DB.WithContext(ctx).First(&snap, "round_num = ?", round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot of round %d: %w", round, err)
	}

	var entries []models.PerformanceEntry
	if err := s.DB.WithContext(ctx).
		Where("round_num = ?", round).
		Order("tournament_id ASC, username ASC").
		Find(&entries).Error; err != nil {
		return nil, false, fmt.Errorf("load entries of round %d: %w", round, err)
	}
	if len(entries) != snap.Entries {
		return nil, false, fmt.Errorf("round %d: snapshot lists %d entries, found %d", round, snap.Entries, len(entries))
	}
	return entries, true, nil
}

// SaveRound replaces a round's entries and its snapshot in one transaction.
func (s *GormRecordStore) SaveRound(ctx context.Context, round int, entries []models.PerformanceEntry) error {
	rows := make([]models.PerformanceEntry, len(entries))
	tournaments := make(map[int]struct{})
	for i, e := range entries {
		e.ID = 0
		rows[i] = e
		tournaments[e.TournamentID] = struct{}{}
	}
	snap := models.RoundSnapshot{
		RoundNum:    round,
		Status:      models.RoundStatusResolved,
		Tournaments: len(tournaments),
		Entries:     len(rows),
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("round_num = ?", round).Delete(&models.PerformanceEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear round %d: %w", round, err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, 500).Error; err != nil {
				return fmt.Errorf("failed to insert round %d: %w", round, err)
			}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_num"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "tournaments", "entries", "fetched_at"}),
		}).Create(&snap).Error; err != nil {
			return fmt.Errorf("failed to write snapshot of round %d: %w", round, err)
		}
		return nil
	})
}

// StoredRounds returns the numbers of all stored rounds.
func (s *GormRecordStore) StoredRounds(ctx context.Context) (map[int]bool, error) {
	var nums []int
	if err := s.DB.WithContext(ctx).Model(&models.RoundSnapshot{}).Pluck("round_num", &nums).Error; err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(nums))
	for _, n := range nums {
		out[n] = true
	}
	return out, nil
}

// UpsertTournaments mirrors the tournament list.
func (s *GormRecordStore) UpsertTournaments(ctx context.Context, tourns []apiclient.Tournament) error {
	if len(tourns) == 0 {
		return nil
	}
	rows := make([]models.Tournament, len(tourns))
	for i, t := range tourns {
		rows[i] = models.Tournament{ID: t.ID, Name: t.Name, Active: t.Active}
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
	}).Create(&rows).Error
}

// StartSyncRun records the start of a sync and returns its row.
func (s *GormRecordStore) StartSyncRun(ctx context.Context) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishSyncRun stamps the end of a sync with its outcome.
func (s *GormRecordStore) FinishSyncRun(ctx context.Context, run *models.SyncRun, syncErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if syncErr != nil {
		run.Error = syncErr.Error()
	}
	return s.DB.WithContext(ctx).Save(run).Error
}

// LatestSyncRuns returns the most recent sync runs, newest first.
func (s *GormRecordStore) LatestSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
