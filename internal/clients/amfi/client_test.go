package amfi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `AMC ,Code, Scheme Name ,Scheme Type,Scheme Category,Scheme NAV Name,Scheme Minimum Amount
Alpha Mutual Fund,100001,Alpha Flexi Cap Fund,Open Ended,Equity Scheme - Flexi Cap Fund,Alpha Flexi Cap Fund - Direct Plan - Growth,500
Alpha Mutual Fund,100002,Alpha Flexi Cap Fund,Open Ended,Equity Scheme - Flexi Cap Fund,Alpha Flexi Cap Fund - Regular Plan - Growth,500
Beta Mutual Fund,200001,"Beta Liquid Fund, Series 1",Open Ended,Debt Scheme - Liquid Fund,Beta Liquid Fund - DIRECT - GROWTH OPTION,1000
Beta Mutual Fund,200002,Beta Liquid Fund,Open Ended,Debt Scheme - Liquid Fund,Beta Liquid Fund - Direct - IDCW,1000
Gamma Mutual Fund,,Gamma Fund,Open Ended,Hybrid,Gamma Fund - Direct - Growth,1000
`

func TestParseSchemeList_FiltersDirectGrowth(t *testing.T) {
	funds, err := ParseSchemeList(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, funds, 2)

	assert.Equal(t, "100001", funds[0].ID)
	assert.Equal(t, "Alpha Flexi Cap Fund", funds[0].Name)
	assert.Equal(t, "Equity Scheme - Flexi Cap Fund", funds[0].Category)
	assert.Equal(t, "Alpha Mutual Fund", funds[0].AMC)

	assert.Equal(t, "200001", funds[1].ID)
	assert.Equal(t, "Beta Liquid Fund, Series 1", funds[1].Name)
}

func TestParseSchemeList_MissingColumn(t *testing.T) {
	_, err := ParseSchemeList(strings.NewReader("AMC,Code,Scheme Name\nA,1,B\n"))
	assert.Error(t, err)
}

func TestParseSchemeList_Empty(t *testing.T) {
	_, err := ParseSchemeList(strings.NewReader(""))
	assert.Error(t, err)
}

func TestGetFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	funds, err := NewClient(WithURL(srv.URL)).GetFunds(context.Background())
	require.NoError(t, err)
	assert.Len(t, funds, 2)
}

func TestGetFunds_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(WithURL(srv.URL)).GetFunds(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "maintenance", apiErr.Message)
}
