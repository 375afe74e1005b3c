package waitlist

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
)

// Tier labels, coarsest first. Entries in the top decile of the list get
// "Top 10%", and so on down to the catch-all.
const (
	TierTop10        = "Top 10%"
	TierHighPriority = "High priority"
	TierEarlyCohort  = "Early cohort"
	TierOnTheList    = "On the list"
)

// Rank is what a joiner learns about their place in line. Exactly one of
// Position and Tier is set, selected by the project's show_position flag.
// Rank is a snapshot: later admissions shift other entries' ranks, never the
// underlying join timestamp.
type Rank struct {
	Position *int    `json:"position"`
	Tier     *string `json:"tier"`
}

// Calculator derives positions and tiers from the ledger. Both modes are
// built on the same inclusive position count, so flipping show_position never
// changes which entries sort ahead of which.
type Calculator struct {
	db *gorm.DB
}

// NewCalculator constructs a rank calculator.
func NewCalculator(db *gorm.DB) (*Calculator, error) {
	if db == nil {
		return nil, errors.New("waitlist: db is required")
	}
	return &Calculator{db: db}, nil
}

// PositionOf counts entries in the project that joined at or before the given
// timestamp. Entries sharing an identical timestamp count each other
// inclusively; that over-approximation is accepted ledger-ordering semantics.
func (c *Calculator) PositionOf(ctx context.Context, projectID string, joinedAt time.Time) (int, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("project_id = ? AND joined_at <= ?", projectID, joinedAt).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// RankOf computes the caller-visible rank for an entry. For tier mode the
// position and total are read inside one transaction so skew between the two
// counts cannot manufacture an impossible percentile.
func (c *Calculator) RankOf(ctx context.Context, project *models.Project, entry *models.WaitlistEntry) (Rank, error) {
	if project == nil || entry == nil {
		return Rank{}, errors.New("waitlist: project and entry are required")
	}

	if project.ShowPosition {
		position, err := c.PositionOf(ctx, project.ID, entry.JoinedAt)
		if err != nil {
			return Rank{}, err
		}
		return Rank{Position: &position}, nil
	}

	var (
		position int64
		total    int64
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WaitlistEntry{}).
			Where("project_id = ? AND joined_at <= ?", project.ID, entry.JoinedAt).
			Count(&position).Error; err != nil {
			return err
		}
		return tx.Model(&models.WaitlistEntry{}).
			Where("project_id = ?", project.ID).
			Count(&total).Error
	})
	if err != nil {
		return Rank{}, err
	}
	if total == 0 {
		// The entry itself is in the ledger, so this only happens if it was
		// purged between insert and rank; degrade to the catch-all tier.
		tier := TierOnTheList
		return Rank{Tier: &tier}, nil
	}

	percentile := float64(total-position+1) / float64(total) * 100
	tier := TierForPercentile(percentile)
	return Rank{Tier: &tier}, nil
}

// TierForPercentile maps a percentile (100 = head of the list) to its label.
func TierForPercentile(percentile float64) string {
	switch {
	case percentile >= 90:
		return TierTop10
	case percentile >= 75:
		return TierHighPriority
	case percentile >= 50:
		return TierEarlyCohort
	default:
		return TierOnTheList
	}
}
