package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
)

// ProjectStats summarises a project's intake for the dashboard.
type ProjectStats struct {
	TotalEntries int64 `json:"total_entries"`
	JoinedToday  int64 `json:"joined_today"`
}

// StatsService computes dashboard counters over the entry ledger.
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService constructs the stats service.
func NewStatsService(db *gorm.DB) (*StatsService, error) {
	if db == nil {
		return nil, errors.New("services: db is required")
	}
	return &StatsService{db: db, now: time.Now}, nil
}

// ForProject returns the total and today's intake for a project. "Today"
// starts at UTC midnight regardless of the dashboard viewer's timezone.
func (s *StatsService) ForProject(ctx context.Context, projectID string) (*ProjectStats, error) {
	var stats ProjectStats

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WaitlistEntry{}).
			Where("project_id = ?", projectID).
			Count(&stats.TotalEntries).Error; err != nil {
			return err
		}

		midnight := s.midnightUTC()
		return tx.Model(&models.WaitlistEntry{}).
			Where("project_id = ? AND joined_at >= ?", projectID, midnight).
			Count(&stats.JoinedToday).Error
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *StatsService) midnightUTC() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
