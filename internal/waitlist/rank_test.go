package waitlist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/database/testutil"
	"github.com/okarlsson/waitgate/internal/models"
)

func seedEntries(t *testing.T, db *gorm.DB, projectID string, n int) []*models.WaitlistEntry {
	t.Helper()

	base := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	entries := make([]*models.WaitlistEntry, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("member%02d@example.com", i+1)
		entries = append(entries, seedEntry(t, db, projectID, email, base.Add(time.Duration(i)*time.Minute)))
	}
	return entries
}

func TestPositionOfCountsInclusively(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	project := seedProject(t, db)
	calc, err := NewCalculator(db)
	require.NoError(t, err)

	ctx := context.Background()
	entries := seedEntries(t, db, project.ID, 3)

	for i, entry := range entries {
		position, err := calc.PositionOf(ctx, project.ID, entry.JoinedAt)
		require.NoError(t, err)
		require.Equal(t, i+1, position)
	}
}

func TestPositionIgnoresOtherProjects(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	project := seedProject(t, db)
	other := seedProject(t, db)
	calc, err := NewCalculator(db)
	require.NoError(t, err)

	ctx := context.Background()
	entry := seedEntries(t, db, project.ID, 1)[0]
	seedEntries(t, db, other.ID, 5)

	position, err := calc.PositionOf(ctx, project.ID, entry.JoinedAt)
	require.NoError(t, err)
	require.Equal(t, 1, position)
}

func TestRankOfPositionMode(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	project := seedProject(t, db)
	calc, err := NewCalculator(db)
	require.NoError(t, err)

	ctx := context.Background()
	entries := seedEntries(t, db, project.ID, 2)

	rank, err := calc.RankOf(ctx, project, entries[1])
	require.NoError(t, err)
	require.Nil(t, rank.Tier)
	require.NotNil(t, rank.Position)
	require.Equal(t, 2, *rank.Position)
}

func TestRankOfTierMode(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	project := seedProject(t, db, func(p *models.Project) { p.ShowPosition = false })
	calc, err := NewCalculator(db)
	require.NoError(t, err)

	ctx := context.Background()
	entries := seedEntries(t, db, project.ID, 10)

	// Position 1 of 10 sits at percentile 100, position 10 at percentile 10.
	cases := []struct {
		index int
		tier  string
	}{
		{0, TierTop10},
		{1, TierTop10},
		{2, TierHighPriority},
		{4, TierEarlyCohort},
		{5, TierEarlyCohort},
		{6, TierOnTheList},
		{9, TierOnTheList},
	}
	for _, tc := range cases {
		rank, err := calc.RankOf(ctx, project, entries[tc.index])
		require.NoError(t, err)
		require.Nil(t, rank.Position)
		require.NotNil(t, rank.Tier)
		require.Equal(t, tc.tier, *rank.Tier, "entry at position %d", tc.index+1)
	}
}

func TestTierNeverImprovesAsListGrows(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	project := seedProject(t, db, func(p *models.Project) { p.ShowPosition = false })
	calc, err := NewCalculator(db)
	require.NoError(t, err)

	ctx := context.Background()
	first := seedEntries(t, db, project.ID, 1)[0]

	order := map[string]int{
		TierTop10:        0,
		TierHighPriority: 1,
		TierEarlyCohort:  2,
		TierOnTheList:    3,
	}

	rank, err := calc.RankOf(ctx, project, first)
	require.NoError(t, err)
	previous := *rank.Tier

	for i := 0; i < 20; i++ {
		seedEntry(t, db, project.ID, fmt.Sprintf("late%02d@example.com", i), time.Now().UTC().Add(time.Duration(i+1)*time.Hour))

		rank, err := calc.RankOf(ctx, project, first)
		require.NoError(t, err)
		require.LessOrEqual(t, order[*rank.Tier], order[previous],
			"an earlier joiner's tier must not worsen as the list grows")
		previous = *rank.Tier
	}
	require.Equal(t, TierTop10, previous)
}

func TestTierForPercentileBoundaries(t *testing.T) {
	cases := []struct {
		percentile float64
		tier       string
	}{
		{100, TierTop10},
		{90, TierTop10},
		{89.9, TierHighPriority},
		{75, TierHighPriority},
		{74.9, TierEarlyCohort},
		{50, TierEarlyCohort},
		{49.9, TierOnTheList},
		{10, TierOnTheList},
		{0, TierOnTheList},
	}
	for _, tc := range cases {
		require.Equal(t, tc.tier, TierForPercentile(tc.percentile), "percentile %.1f", tc.percentile)
	}
}
