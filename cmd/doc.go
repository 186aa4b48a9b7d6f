// Package cmd implements the agrishikyo command line.
//
// Architecture overview:
//   - run: one relay. Headless Chrome (internal/browser) signs in to netアグリ市況 with the account id,
//     password and read code (internal/auth), opens the 1キロ平均価格 report for each configured commodity
//     (internal/report), parses the rendered tables with goquery into city-filtered rows, combines them
//     (internal/market) and posts one Slack message (internal/notify/slack). --dry-run prints the table
//     instead (internal/notify/console).
//   - schedule: the same run on a cron schedule in the market's time zone (internal/schedule), with
//     /healthz, /readyz, /v1/status and /metrics served by internal/api.
//   - Configuration & plumbing: Viper reads config.yaml, .env and AGRI_* variables (internal/config); zap
//     provides structured logging with a run_id on every run; Prometheus collectors live on a private
//     registry and are pushed to a Pushgateway after batch runs when configured.
//
// Operational notes:
//   - Runs are sequential and bounded by browser.run_timeout. The browser is always closed and a signed-in
//     session is always logged out, even when a step fails.
//   - Secrets: SLACK_WEBHOOK_URL, USER_INFO_ID, USER_INFO_PW and READ_CODE (or their AGRI_ forms) are
//     required; they are never logged.
package cmd
