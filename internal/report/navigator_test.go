package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/agrishikyo-relay/internal/browser/browsertest"
	"github.com/JakeFAU/agrishikyo-relay/internal/report/reporttest"
)

var navHeaders = []string{"都市", "11/04(水)", "グラフ"}

func itemFake(items ...string) *browsertest.Fake {
	fake := browsertest.New()
	fake.Options["#hinmoku_select > select"] = items
	fake.Counts["table"] = 5
	for _, item := range items {
		fake.Pages[item] = reporttest.Page(item, "2020年11月09日の取引", navHeaders,
			reporttest.City{Name: "東京都", Rows: [][]string{{"200"}}})
	}
	return fake
}

func testNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		ReportPath: "/SEIKA_KAKUTEI2012/CGI/SEIKA_KAKUTEI.CGI",
		ViewMode:   "HINMOKU",
		ItemSelect: "#hinmoku_select > select",
	}
}

func TestNavigatorOpen(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ", "ヤマノイモ")

	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	require.NoError(t, nav.Open(context.Background(), "ヤマノイモ"))

	evals := fake.CallsOf("evaluate")
	require.Len(t, evals, 2)
	require.Equal(t, `gotoURL("/SEIKA_KAKUTEI2012/CGI/SEIKA_KAKUTEI.CGI")`, evals[0].Text)
	require.Equal(t, `changeView("HINMOKU")`, evals[1].Text)

	selects := fake.CallsOf("select")
	require.Len(t, selects, 1)
	require.Equal(t, "ヤマノイモ", selects[0].Text)
}

func TestNavigatorOpenRequiresExactOption(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ")

	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	err := nav.Open(context.Background(), "ジャガ")
	if !errors.Is(err, ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestNavigatorOpenValidatesTableCount(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ")
	fake.Counts["table"] = 3

	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	err := nav.Open(context.Background(), "ジャガイモ")
	if !errors.Is(err, ErrPageSchema) {
		t.Fatalf("expected ErrPageSchema, got %v", err)
	}
}

func TestNavigatorOpenPropagatesScriptFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("gotoURL is not defined")
	fake := browsertest.New()
	fake.Errors["evaluate"] = boom

	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	err := nav.Open(context.Background(), "ジャガイモ")
	require.ErrorIs(t, err, boom)
	require.Empty(t, fake.CallsOf("select"))
}

func TestNavigatorSnapshot(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ")
	fake.DefaultHTML = "<html>menu</html>"

	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	html, err := nav.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "<html>menu</html>", html)

	require.NoError(t, nav.Open(context.Background(), "ジャガイモ"))
	html, err = nav.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, fake.Pages["ジャガイモ"], html)
}

func TestNavigatorOpenWaitsForSelectedItem(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ", "ヤマノイモ")
	fake.NavDelay = 40 * time.Millisecond
	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)
	ctx := context.Background()

	for _, item := range []string{"ジャガイモ", "ヤマノイモ"} {
		require.NoError(t, nav.Open(ctx, item))
		html, err := nav.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, fake.Pages[item], html, "snapshot after selecting %s", item)
	}

	evals := fake.CallsOf("evaluate")
	require.Len(t, evals, 4)
	selects := fake.CallsOf("select")
	require.Len(t, selects, 2)
	require.Equal(t, evals[3].Page+1, selects[1].Page, "select must follow the settled changeView")
}

func TestNavigatorOpenReportsStaleItem(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ", "ヤマノイモ")
	// The page keeps showing the first item whatever is selected.
	fake.Pages["ヤマノイモ"] = fake.Pages["ジャガイモ"]
	cfg := testNavigatorConfig()
	cfg.ItemTimeout = 100 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	nav := NewNavigator(fake, cfg, DefaultSchema(), nil)

	require.NoError(t, nav.Open(context.Background(), "ジャガイモ"))
	err := nav.Open(context.Background(), "ヤマノイモ")
	require.ErrorIs(t, err, ErrPageSchema)
	require.Contains(t, err.Error(), "still shows")
}

func TestNavigatorOpenStopsWaitingOnCancel(t *testing.T) {
	t.Parallel()

	fake := itemFake("ジャガイモ")
	fake.Pages["ジャガイモ"] = "<html><body>no heading</body></html>"
	nav := NewNavigator(fake, testNavigatorConfig(), DefaultSchema(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := nav.Open(ctx, "ジャガイモ")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
