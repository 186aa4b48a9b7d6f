package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
	"github.com/JakeFAU/agrishikyo-relay/internal/report/reporttest"
)

var testHeaders = []string{"都市", "11/04(水)", "11/05(木)", "グラフ"}

func potatoPage() string {
	return reporttest.Page("ジャガイモ", "2020年11月09日の取引", testHeaders,
		reporttest.City{Name: "札幌市", Rows: [][]string{{"120", "118"}}},
		reporttest.City{Name: "仙台市", Rows: [][]string{{"130", "131"}}, Class: "st-td2 l"},
		reporttest.City{Name: "東京都", Rows: [][]string{{"100", "200"}}},
		reporttest.City{Name: "名古屋市", Rows: [][]string{{"140", "142"}}, Class: "st-td2 l"},
		reporttest.City{Name: "大阪市", Rows: [][]string{{"90", "80"}}, Class: "st-td2 l"},
		reporttest.City{Name: "福岡市", Rows: [][]string{{"95", "97"}}},
	)
}

func TestExtractBuildsFilteredTable(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(DefaultSchema(), market.DefaultCities, zap.NewNop())
	got, err := ex.Extract("ジャガイモ", potatoPage())
	require.NoError(t, err)

	require.Equal(t, []string{"取引日", "取引年月", "品目", "都市", "11/04(水)", "11/05(木)"}, got.Headers)
	require.Equal(t, []market.Record{
		{"20201109", "202011", "ジャガイモ", "札幌市", "120", "118"},
		{"20201109", "202011", "ジャガイモ", "東京都", "100", "200"},
		{"20201109", "202011", "ジャガイモ", "大阪市", "90", "80"},
		{"20201109", "202011", "ジャガイモ", "福岡市", "95", "97"},
	}, got.Rows)
	require.NoError(t, got.Validate())
}

func TestExtractFailsLoudlyOnShapeMismatch(t *testing.T) {
	t.Parallel()

	page := reporttest.Page("ジャガイモ", "2020年11月09日の取引", testHeaders,
		reporttest.City{Name: "東京都", Rows: [][]string{{"100", "200", "300"}}},
	)
	ex := NewExtractor(DefaultSchema(), market.DefaultCities, nil)
	_, err := ex.Extract("ジャガイモ", page)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "東京都") {
		t.Fatalf("expected error to name the city, got %v", err)
	}
}

func TestExtractRejectsMissingTables(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(DefaultSchema(), market.DefaultCities, nil)
	_, err := ex.Extract("ジャガイモ", `<html><body><table></table><table></table></body></html>`)
	if !errors.Is(err, ErrPageSchema) {
		t.Fatalf("expected ErrPageSchema, got %v", err)
	}
}

func TestExtractRejectsBadCaption(t *testing.T) {
	t.Parallel()

	page := reporttest.Page("ジャガイモ", "データがありません", testHeaders)
	ex := NewExtractor(DefaultSchema(), market.DefaultCities, nil)
	_, err := ex.Extract("ジャガイモ", page)
	if !errors.Is(err, market.ErrTradeDate) {
		t.Fatalf("expected ErrTradeDate, got %v", err)
	}
}

func TestExtractRejectsMissingItemName(t *testing.T) {
	t.Parallel()

	schema := DefaultSchema()
	schema.ItemName = "#does-not-exist"
	ex := NewExtractor(schema, market.DefaultCities, nil)
	_, err := ex.Extract("ジャガイモ", potatoPage())
	if !errors.Is(err, ErrPageSchema) {
		t.Fatalf("expected ErrPageSchema, got %v", err)
	}
}

func TestExtractRequiresCityColumn(t *testing.T) {
	t.Parallel()

	page := reporttest.Page("ジャガイモ", "2020年11月09日の取引", []string{"市場", "11/04", "グラフ"},
		reporttest.City{Name: "東京都", Rows: [][]string{{"100"}}},
	)
	ex := NewExtractor(DefaultSchema(), market.DefaultCities, nil)
	_, err := ex.Extract("ジャガイモ", page)
	require.ErrorIs(t, err, ErrPageSchema)
	require.ErrorIs(t, err, market.ErrMissingColumn)
}

func TestSchemaValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultSchema().Validate())
	require.Equal(t, 5, DefaultSchema().MinTables())

	bad := DefaultSchema()
	bad.CityCellClasses = nil
	require.ErrorContains(t, bad.Validate(), "city_cell_classes")

	bad = DefaultSchema()
	bad.DataIndex = -1
	require.ErrorContains(t, bad.Validate(), "indexes")
}

func TestSchemaCityClassMatchIgnoresSpacing(t *testing.T) {
	t.Parallel()

	s := DefaultSchema()
	require.True(t, s.isCityCell("st-td1 l"))
	require.True(t, s.isCityCell("  st-td2   l "))
	require.False(t, s.isCityCell("st-td r"))
	require.False(t, s.isCityCell("st-td1"))
}
