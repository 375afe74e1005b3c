package waitlist

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/pkg/crypto"
)

var (
	// ErrEntryNotFound indicates the requested waitlist entry does not exist.
	ErrEntryNotFound = errors.New("waitlist: entry not found")
)

// insertRetries bounds referral-code regeneration when an insert keeps
// colliding. Codes carry 48 bits of randomness, so more than one retry is
// already unheard of.
const insertRetries = 3

// Ledger is the append-mostly store of waitlist entries. Rows are immutable
// after insertion except for priority-score credits.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a Ledger once a database handle is supplied.
func NewLedger(db *gorm.DB) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("waitlist: db is required")
	}
	return &Ledger{db: db}, nil
}

// FindByEmail returns the entry for (project, normalized email), or ErrEntryNotFound.
func (l *Ledger) FindByEmail(ctx context.Context, projectID, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := l.db.WithContext(ctx).
		Take(&entry, "project_id = ? AND email = ?", projectID, models.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByReferralCode resolves a referral code within a project.
func (l *Ledger) FindByReferralCode(ctx context.Context, projectID, code string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := l.db.WithContext(ctx).
		Take(&entry, "project_id = ? AND referral_code = ?", projectID, code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// InsertOrFetch creates a new entry for (project, email), or returns the
// existing one when another request won the race. The unique index on
// (project_id, email) is the authority: an insert that loses falls back to a
// lookup instead of surfacing a conflict. A duplicate referral code is
// retried with a fresh code rather than reported to the caller.
func (l *Ledger) InsertOrFetch(ctx context.Context, projectID, email string, referredBy *string, score int) (*models.WaitlistEntry, bool, error) {
	normalized := models.NormalizeEmail(email)

	var insertErr error
	for attempt := 0; attempt < insertRetries; attempt++ {
		code, err := crypto.GenerateReferralCode()
		if err != nil {
			return nil, false, fmt.Errorf("waitlist: generate referral code: %w", err)
		}

		entry := models.WaitlistEntry{
			ProjectID:     projectID,
			Email:         normalized,
			ReferralCode:  code,
			ReferredBy:    referredBy,
			PriorityScore: score,
		}

		insertErr = l.db.WithContext(ctx).Create(&entry).Error
		if insertErr == nil {
			return &entry, true, nil
		}

		// The insert failed; if (project, email) now exists we lost a race to
		// an identical join and the existing row is the answer. Otherwise the
		// collision was on the referral code, so regenerate and retry.
		existing, lookupErr := l.FindByEmail(ctx, projectID, normalized)
		if lookupErr == nil {
			return existing, false, nil
		}
		if !errors.Is(lookupErr, ErrEntryNotFound) {
			return nil, false, lookupErr
		}
	}

	return nil, false, fmt.Errorf("waitlist: insert entry: %w", insertErr)
}

// CreditReferrer atomically adds one priority point to the entry owning the
// referral code. Returns false when the code does not resolve within the
// project; that is not an error, the credit is simply not granted.
func (l *Ledger) CreditReferrer(ctx context.Context, projectID, code string) (bool, error) {
	res := l.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("project_id = ? AND referral_code = ?", projectID, code).
		UpdateColumn("priority_score", gorm.Expr("priority_score + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByProject returns a project's entries, newest first, for the dashboard
// and export tooling.
func (l *Ledger) ListByProject(ctx context.Context, projectID string) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := l.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("joined_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes a single entry from a project.
func (l *Ledger) Delete(ctx context.Context, projectID, entryID string) error {
	res := l.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", entryID, projectID).
		Delete(&models.WaitlistEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Purge removes every entry of a project and reports how many went away.
func (l *Ledger) Purge(ctx context.Context, projectID string) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&models.WaitlistEntry{})
	return res.RowsAffected, res.Error
}
