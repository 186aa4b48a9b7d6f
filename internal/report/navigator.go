package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/browser"
)

// ErrOptionNotFound indicates the item dropdown has no option for a keyword.
var ErrOptionNotFound = errors.New("item option not found")

// NavigatorConfig names the page hooks used to reach the report.
type NavigatorConfig struct {
	// ReportPath is passed to the page's gotoURL() hook.
	ReportPath string
	// ViewMode is passed to the page's changeView() hook.
	ViewMode string
	// ItemSelect selects the item dropdown.
	ItemSelect string
	// ItemTimeout bounds the wait for the report to show a newly selected
	// item. Defaults to 30s.
	ItemTimeout time.Duration
	// PollInterval is how often the item heading is re-read while waiting.
	// Defaults to 50ms.
	PollInterval time.Duration
}

const (
	defaultItemTimeout  = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Navigator switches the authenticated session to a commodity's report.
type Navigator struct {
	driver browser.Driver
	cfg    NavigatorConfig
	schema Schema
	logger *zap.Logger
}

// NewNavigator builds a Navigator over driver.
func NewNavigator(driver browser.Driver, cfg NavigatorConfig, schema Schema, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Navigator{driver: driver, cfg: cfg, schema: schema, logger: logger}
}

// Open routes to the report, switches it to per-item view and selects the
// option whose label equals keyword exactly. Open returns once the report
// shows the selected item and renders the tables the schema expects.
func (n *Navigator) Open(ctx context.Context, keyword string) error {
	if err := n.driver.EvaluateAndSettle(ctx, fmt.Sprintf("gotoURL(%s)", strconv.Quote(n.cfg.ReportPath))); err != nil {
		return fmt.Errorf("open report %s: %w", n.cfg.ReportPath, err)
	}
	if err := n.driver.EvaluateAndSettle(ctx, fmt.Sprintf("changeView(%s)", strconv.Quote(n.cfg.ViewMode))); err != nil {
		return fmt.Errorf("switch view to %s: %w", n.cfg.ViewMode, err)
	}
	if err := n.driver.WaitReady(ctx, n.cfg.ItemSelect); err != nil {
		return fmt.Errorf("%w: item selector %s: %w", ErrPageSchema, n.cfg.ItemSelect, err)
	}

	shown := n.shownItem(ctx)
	found, err := n.driver.SelectByLabel(ctx, n.cfg.ItemSelect, keyword)
	if err != nil {
		return fmt.Errorf("select %s: %w", keyword, err)
	}
	if !found {
		return fmt.Errorf("%w: %q in %s", ErrOptionNotFound, keyword, n.cfg.ItemSelect)
	}

	if err := n.awaitItem(ctx, keyword, shown); err != nil {
		return err
	}
	tables, err := n.driver.Count(ctx, n.schema.Table)
	if err != nil {
		return fmt.Errorf("count report tables: %w", err)
	}
	if tables < n.schema.MinTables() {
		return fmt.Errorf("%w: %s: found %d tables, need %d", ErrPageSchema, keyword, tables, n.schema.MinTables())
	}
	n.logger.Info("report opened", zap.String("keyword", keyword), zap.Int("tables", tables))
	return nil
}

// shownItem reads the item heading, or "" when the page has none.
func (n *Navigator) shownItem(ctx context.Context) string {
	text, err := n.driver.Text(ctx, n.schema.ItemName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// awaitItem polls the item heading until it names keyword or shows anything
// other than previous, the heading read before the selection was made.
func (n *Navigator) awaitItem(ctx context.Context, keyword, previous string) error {
	waitCtx, cancel := context.WithTimeout(ctx, n.cfg.ItemTimeout)
	defer cancel()
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		text, err := n.driver.Text(waitCtx, n.schema.ItemName)
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" && (text != previous || strings.Contains(text, keyword)) {
				return nil
			}
		}
		lastErr = err

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			if lastErr != nil {
				return fmt.Errorf("%w: %s: item heading %s: %w", ErrPageSchema, keyword, n.schema.ItemName, lastErr)
			}
			return fmt.Errorf("%w: %s: report still shows %q after %s", ErrPageSchema, keyword, previous, n.cfg.ItemTimeout)
		case <-ticker.C:
		}
	}
}

// Snapshot returns the currently rendered report HTML.
func (n *Navigator) Snapshot(ctx context.Context) (string, error) {
	html, err := n.driver.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot report: %w", err)
	}
	return html, nil
}
