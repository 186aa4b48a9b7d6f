package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func priceTable(rows ...Record) Table {
	return Table{
		Headers: []string{ColumnTradeDate, ColumnTradeMonth, ColumnItem, ColumnCity, "高値", "安値"},
		Rows:    rows,
	}
}

func TestCombinePreservesOrderAndCount(t *testing.T) {
	t.Parallel()

	potato := priceTable(
		Record{"20201109", "202011", "ジャガイモ", "東京都", "100", "200"},
		Record{"20201109", "202011", "ジャガイモ", "大阪市", "90", "80"},
	)
	yam := priceTable(
		Record{"20201109", "202011", "ヤマノイモ", "札幌市", "300", "250"},
	)

	got, err := Combine(potato, yam)
	require.NoError(t, err)
	require.Equal(t, potato.Len()+yam.Len(), got.Len())
	require.Equal(t, potato.Headers, got.Headers)
	require.Equal(t, "東京都", got.Rows[0][3])
	require.Equal(t, "大阪市", got.Rows[1][3])
	require.Equal(t, "札幌市", got.Rows[2][3])

	got.Rows[0][3] = "changed"
	require.Equal(t, "東京都", potato.Rows[0][3], "Combine must not alias input rows")
}

func TestCombineRejectsDifferentHeaders(t *testing.T) {
	t.Parallel()

	a := priceTable(Record{"d", "m", "i", "東京都", "1", "2"})
	b := Table{Headers: []string{ColumnTradeDate, ColumnTradeMonth, ColumnItem, ColumnCity, "中値"}}

	_, err := Combine(a, b)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestCombineEmpty(t *testing.T) {
	t.Parallel()

	got, err := Combine()
	require.NoError(t, err)
	require.Zero(t, got.Len())
	require.Empty(t, got.Headers)
}

func TestFilterCities(t *testing.T) {
	t.Parallel()

	in := priceTable(
		Record{"d", "m", "i", "東京都", "1", "2"},
		Record{"d", "m", "i", "名古屋市", "1", "2"},
		Record{"d", "m", "i", "福岡市", "1", "2"},
		Record{"d", "m", "i", "仙台市", "1", "2"},
		Record{"d", "m", "i", "札幌市", "1", "2"},
	)

	got, err := FilterCities(in, DefaultCities)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	for i := range got.Rows {
		city, err := got.Value(i, ColumnCity)
		require.NoError(t, err)
		require.Contains(t, DefaultCities, city)
	}
	require.Equal(t, "東京都", got.Rows[0][3])
	require.Equal(t, "福岡市", got.Rows[1][3])
	require.Equal(t, "札幌市", got.Rows[2][3])
}

func TestFilterCitiesExcludesEverythingOutsideWhitelist(t *testing.T) {
	t.Parallel()

	in := priceTable(
		Record{"d", "m", "i", "横浜市", "1", "2"},
		Record{"d", "m", "i", "京都市", "1", "2"},
	)
	got, err := FilterCities(in, DefaultCities)
	require.NoError(t, err)
	require.Zero(t, got.Len())
}

func TestCombineRejectsRaggedFragment(t *testing.T) {
	t.Parallel()

	headers := []string{"品目", "都市"}
	good := Table{Headers: headers, Rows: []Record{{"ジャガイモ", "東京都"}}}
	ragged := Table{Headers: headers, Rows: []Record{{"ヤマノイモ"}}}

	_, err := Combine(good, ragged)
	require.ErrorIs(t, err, ErrRowShape)
	require.ErrorContains(t, err, "fragment 1")
}

func TestFilterCitiesMissingColumn(t *testing.T) {
	t.Parallel()

	_, err := FilterCities(Table{Headers: []string{"A"}}, DefaultCities)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestTableValidateAndValue(t *testing.T) {
	t.Parallel()

	tbl := Table{Headers: []string{"A", "B"}, Rows: []Record{{"x", "y"}, {"z"}}}
	if err := tbl.Validate(); !errors.Is(err, ErrRowShape) {
		t.Fatalf("expected ErrRowShape, got %v", err)
	}
	v, err := tbl.Value(0, "B")
	require.NoError(t, err)
	require.Equal(t, "y", v)
	_, err = tbl.Value(1, "B")
	require.ErrorIs(t, err, ErrRowShape)
	_, err = tbl.Value(0, "C")
	require.ErrorIs(t, err, ErrMissingColumn)
}
