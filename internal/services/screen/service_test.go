package screen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

type mockDatasets struct {
	ds  *models.Dataset
	err error
}

func (m *mockDatasets) Load(_ context.Context, _ bool) (*models.Dataset, error) {
	return m.ds, m.err
}

func (m *mockDatasets) Invalidate(_ context.Context) error { return nil }

var now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func day(daysAgo int) time.Time {
	return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo)
}

func obs(daysAgo int, v float64) models.NAVObservation {
	return models.NAVObservation{Date: day(daysAgo), NAV: v}
}

func testDataset() *models.Dataset {
	return &models.Dataset{
		Funds: []models.Fund{
			{ID: "A", Name: "Alpha Growth", Category: "Equity", AMC: "Alpha AMC"},
			{ID: "B", Name: "Beta Bond", Category: "Debt", AMC: "Beta AMC"},
			{ID: "C", Name: "Gamma New", Category: "Equity", AMC: "Alpha AMC"},
			{ID: "D", Name: "Delta Closed", Category: "Hybrid", AMC: "Delta AMC"},
			{ID: "E", Name: "Epsilon Twin", Category: "Equity", AMC: ""},
		},
		History: map[string][]models.NAVObservation{
			// doubled over two years: CAGR 41.42%
			"A": {obs(800, 9), obs(731, 10), obs(400, 14), obs(1, 20)},
			// +10% over two years: CAGR 4.88%
			"B": {obs(900, 100), obs(730, 100), obs(0, 110)},
			// launched inside the window
			"C": {obs(100, 10), obs(0, 30)},
			// last NAV a month ago
			"D": {obs(1000, 10), obs(30, 50)},
			// identical to B, tie broken by ID
			"E": {obs(900, 100), obs(730, 100), obs(0, 110)},
		},
	}
}

func newTestService(ds *models.Dataset) *Service {
	svc := NewService(&mockDatasets{ds: ds}, common.NewDefaultConfig(), common.NewSilentLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestTopByCAGR(t *testing.T) {
	svc := newTestService(testDataset())

	rows, err := svc.TopByCAGR(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "A", rows[0].SchemeCode)
	assert.Equal(t, "Alpha Growth", rows[0].SchemeName)
	assert.Equal(t, "Equity", rows[0].Category)
	assert.Equal(t, 2, rows[0].Years)
	assert.Equal(t, 41.42, rows[0].CAGRPct)

	assert.Equal(t, "B", rows[1].SchemeCode)
	assert.Equal(t, 4.88, rows[1].CAGRPct)
	assert.Equal(t, "E", rows[2].SchemeCode)

	assert.Equal(t, "C", rows[3].SchemeCode)
	assert.Equal(t, 0.0, rows[3].CAGRPct)

	for _, r := range rows {
		assert.NotEqual(t, "D", r.SchemeCode)
	}
}

func TestTopByCAGR_WeekendGapIsFresh(t *testing.T) {
	friday := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	ds := &models.Dataset{
		Funds: []models.Fund{{ID: "A", Name: "Alpha Growth", Category: "Equity"}},
		History: map[string][]models.NAVObservation{
			"A": {
				{Date: friday.AddDate(-2, 0, 0), NAV: 10},
				{Date: friday, NAV: 12},
			},
		},
	}
	svc := newTestService(ds)
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }

	rows, err := svc.TopByCAGR(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].SchemeCode)
}

func TestTopByCAGR_Limit(t *testing.T) {
	svc := newTestService(testDataset())

	rows, err := svc.TopByCAGR(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A", "B"}, []string{rows[0].SchemeCode, rows[1].SchemeCode})
}

func TestTopByCAGR_InvalidYears(t *testing.T) {
	svc := newTestService(testDataset())
	_, err := svc.TopByCAGR(context.Background(), 0, 5)
	assert.Error(t, err)
}

func TestListQueries(t *testing.T) {
	svc := newTestService(testDataset())
	ctx := context.Background()

	funds, err := svc.ListFunds(ctx)
	require.NoError(t, err)
	assert.Len(t, funds, 5)

	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Debt", "Equity", "Hybrid"}, cats)

	amcs, err := svc.ListAMCs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha AMC", "Beta AMC", "Delta AMC"}, amcs)

	equity, err := svc.FundsByCategory(ctx, "Equity")
	require.NoError(t, err)
	assert.Len(t, equity, 3)

	none, err := svc.FundsByCategory(ctx, "equity")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDatasetErrorPropagates(t *testing.T) {
	svc := NewService(&mockDatasets{err: errors.New("offline")}, common.NewDefaultConfig(), common.NewSilentLogger())

	_, err := svc.ListFunds(context.Background())
	assert.Error(t, err)
	_, err = svc.TopByCAGR(context.Background(), 1, 5)
	assert.Error(t, err)
}
