package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
)

// Export formats supported by the entry export endpoint.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ErrUnsupportedFormat indicates an export format outside csv and json.
var ErrUnsupportedFormat = errors.New("services: unsupported export format")

// ExportService streams a project's entries to a writer. Ordering is oldest
// first so row number matches waitlist position for untouched lists.
type ExportService struct {
	db *gorm.DB
}

// NewExportService constructs the export service.
func NewExportService(db *gorm.DB) (*ExportService, error) {
	if db == nil {
		return nil, errors.New("services: db is required")
	}
	return &ExportService{db: db}, nil
}

// ContentType returns the MIME type for a format, or an error for unknown ones.
func (s *ExportService) ContentType(format string) (string, error) {
	switch format {
	case FormatCSV:
		return "text/csv", nil
	case FormatJSON:
		return "application/json", nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Write exports the project's entries in the requested format.
func (s *ExportService) Write(ctx context.Context, w io.Writer, projectID, format string) error {
	var entries []models.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("joined_at ASC").
		Find(&entries).Error
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return ErrUnsupportedFormat
	}
}

func writeCSV(w io.Writer, entries []models.WaitlistEntry) error {
	writer := csv.NewWriter(w)

	header := []string{"email", "joined_at", "referral_code", "referred_by", "priority_score"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("services: write csv header: %w", err)
	}

	for _, entry := range entries {
		referredBy := ""
		if entry.ReferredBy != nil {
			referredBy = *entry.ReferredBy
		}
		record := []string{
			entry.Email,
			entry.JoinedAt.UTC().Format(time.RFC3339),
			entry.ReferralCode,
			referredBy,
			strconv.Itoa(entry.PriorityScore),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("services: write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, entries []models.WaitlistEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
