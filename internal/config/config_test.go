package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.test/T000")
	t.Setenv("USER_INFO_ID", "user01")
	t.Setenv("USER_INFO_PW", "secret")
	t.Setenv("READ_CODE", "1234")
}

// Load reads .env from the working directory; run from an empty one.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	setSecrets(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://hooks.example.test/T000", cfg.Slack.WebhookURL)
	require.Equal(t, "user01", cfg.Auth.UserID)
	require.Equal(t, "secret", cfg.Auth.Password)
	require.Equal(t, "1234", cfg.Auth.ReadCode)
	require.Equal(t, ":memo:", cfg.Slack.IconEmoji)
	require.Equal(t, "市場データ", cfg.Slack.Username)
	require.Equal(t, 3*time.Second, cfg.Browser.SettleDelay)
	require.Equal(t, 5*time.Minute, cfg.Browser.RunTimeout)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, []string{"札幌市", "東京都", "大阪市", "福岡市"}, cfg.Report.Cities)
	require.Equal(t, []string{"ジャガイモ", "ヤマノイモ"}, cfg.Keywords())
	require.Equal(t, ".subnavi_logout", cfg.LogoutSelector())
	require.Equal(t, 4, cfg.Report.Schema.DataIndex)
	require.Equal(t, "Asia/Tokyo", cfg.Schedule.Timezone)
}

func TestLoadPrefixedEnvOverrides(t *testing.T) {
	chdirTemp(t)
	setSecrets(t)
	t.Setenv("AGRI_AUTH_USER_ID", "override")
	t.Setenv("AGRI_REPORT_KEYWORD_SET", "quote")
	t.Setenv("AGRI_BROWSER_SETTLE_DELAY", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "override", cfg.Auth.UserID)
	require.Equal(t, []string{"ジャガイモ", "ナガイモ"}, cfg.Keywords())
	require.Equal(t, 250*time.Millisecond, cfg.Browser.SettleDelay)
}

func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)
	setSecrets(t)

	path := filepath.Join(dir, "relay.yaml")
	content := []byte(`
report:
  keywords: ["ダイコン"]
  cities: ["東京都"]
slack:
  username: "bot"
server:
  port: 9090
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"ダイコン"}, cfg.Keywords())
	require.Equal(t, []string{"東京都"}, cfg.Report.Cities)
	require.Equal(t, "bot", cfg.Slack.Username)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	// t.Setenv registers restoration so values godotenv sets are cleared.
	for _, key := range []string{"SLACK_WEBHOOK_URL", "USER_INFO_ID", "USER_INFO_PW", "READ_CODE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	env := "SLACK_WEBHOOK_URL=https://hooks.example.test/env\nUSER_INFO_ID=u\nUSER_INFO_PW=p\nREAD_CODE=c\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://hooks.example.test/env", cfg.Slack.WebhookURL)
	require.Equal(t, "c", cfg.Auth.ReadCode)
}

func TestLoadMissingSecret(t *testing.T) {
	chdirTemp(t)
	setSecrets(t)
	t.Setenv("USER_INFO_PW", "")

	_, err := Load("")
	require.ErrorContains(t, err, "auth.password must be set (USER_INFO_PW)")
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	setSecrets(t)
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"webhook", func(c *Config) { c.Slack.WebhookURL = "" }, "slack.webhook_url"},
		{"read code", func(c *Config) { c.Auth.ReadCode = "" }, "auth.read_code"},
		{"action timeout", func(c *Config) { c.Browser.ActionTimeout = 0 }, "browser.action_timeout"},
		{"settle delay", func(c *Config) { c.Browser.SettleDelay = -time.Second }, "browser.settle_delay"},
		{"cities", func(c *Config) { c.Report.Cities = nil }, "report.cities"},
		{"keyword set", func(c *Config) { c.Report.KeywordSet = "bogus" }, "report.keyword_set"},
		{"schema", func(c *Config) { c.Report.Schema.GraphMarker = "" }, "graph_marker"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Report.Schema.CityCellClasses = append([]string(nil), base.Report.Schema.CityCellClasses...)
			tc.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestCredentialsStringMasks(t *testing.T) {
	t.Parallel()

	c := Credentials{UserID: "user01", Password: "secret", ReadCode: "1234"}
	s := c.String()
	require.NotContains(t, s, "secret")
	require.NotContains(t, s, "1234")
	require.Contains(t, s, "us****")
}

func TestLoadDiscoversConfigInWorkingDir(t *testing.T) {
	dir := chdirTemp(t)
	setSecrets(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 7070\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	setSecrets(t)

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}
