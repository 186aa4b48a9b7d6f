// Package config loads and validates relay configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/agrishikyo-relay/internal/report"
)

// Keyword sets used by the two report views of the site.
const (
	KeywordSetUnit  = "unit"
	KeywordSetQuote = "quote"
)

// keywordSets are the commodity lists for the unit-price (キロ単価) and
// quote-price (気配値) reports.
var keywordSets = map[string][]string{
	KeywordSetUnit:  {"ジャガイモ", "ヤマノイモ"},
	KeywordSetQuote: {"ジャガイモ", "ナガイモ"},
}

// Config captures every knob of the relay.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Auth     Credentials    `mapstructure:"auth"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Report   ReportConfig   `mapstructure:"report"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig describes the upstream market-data site.
type SiteConfig struct {
	LoginURL    string `mapstructure:"login_url"`
	ReportPath  string `mapstructure:"report_path"`
	ViewMode    string `mapstructure:"view_mode"`
	ItemSelect  string `mapstructure:"item_select"`
	LogoutClass string `mapstructure:"logout_class"`
	// LoginInput selects the inputs of both login forms.
	LoginInput string `mapstructure:"login_input"`
}

// Credentials are the secrets needed to sign in. Only the authenticator
// receives them.
type Credentials struct {
	UserID   string `mapstructure:"user_id"`
	Password string `mapstructure:"password"`
	ReadCode string `mapstructure:"read_code"`
}

// String hides the secrets.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{UserID:%s}", mask(c.UserID))
}

// SlackConfig configures the incoming webhook message.
type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	IconEmoji  string        `mapstructure:"icon_emoji"`
	Username   string        `mapstructure:"username"`
	SiteURL    string        `mapstructure:"site_url"`
	SheetURL   string        `mapstructure:"sheet_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// BrowserConfig configures headless Chrome and the run's pacing.
type BrowserConfig struct {
	ExecPath        string        `mapstructure:"exec_path"`
	UserAgent       string        `mapstructure:"user_agent"`
	Headless        bool          `mapstructure:"headless"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	KeywordInterval time.Duration `mapstructure:"keyword_interval"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
}

// ReportConfig chooses the commodities and cities to relay.
type ReportConfig struct {
	KeywordSet string        `mapstructure:"keyword_set"`
	Keywords   []string      `mapstructure:"keywords"`
	Cities     []string      `mapstructure:"cities"`
	Schema     report.Schema `mapstructure:"schema"`
}

// ScheduleConfig drives the daemon mode.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	Timezone   string `mapstructure:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// ServerConfig controls the daemon's HTTP surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// MetricsConfig controls metric export for batch runs.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from a config file, a .env file in the working
// directory and the environment. The secrets also honor their historical
// variable names (SLACK_WEBHOOK_URL, USER_INFO_ID, USER_INFO_PW, READ_CODE).
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindSecrets(v); err != nil {
		return Config{}, err
	}

	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readConfigFile reads path, or searches the default locations for a
// config.yaml when path is empty. A missing default file is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agrishikyo/")
	v.AddConfigPath("$HOME/.agrishikyo")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	schema := report.DefaultSchema()

	v.SetDefault("site.login_url", "https://www.agrishikyo.jp/LOGIN2017/CGI/LOGIN2017TOP.CGI")
	v.SetDefault("site.report_path", "/SEIKA_KAKUTEI2012/CGI/SEIKA_KAKUTEI.CGI")
	v.SetDefault("site.view_mode", "HINMOKU")
	v.SetDefault("site.item_select", "#hinmoku_select > select")
	v.SetDefault("site.logout_class", "subnavi_logout")
	v.SetDefault("site.login_input", "input")
	v.SetDefault("slack.icon_emoji", ":memo:")
	v.SetDefault("slack.username", "市場データ")
	v.SetDefault("slack.site_url", "https://www.agrishikyo.jp/")
	v.SetDefault("slack.sheet_url", "https://docs.google.com/spreadsheets/d/1XnYcM8-dZVAgbSd-9yCCyhYYJ7Xg4-bHnPu4FJZKYyE")
	v.SetDefault("slack.timeout", "15s")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.settle_delay", "3s")
	v.SetDefault("browser.keyword_interval", "1s")
	v.SetDefault("browser.run_timeout", "5m")
	v.SetDefault("report.keyword_set", KeywordSetUnit)
	v.SetDefault("report.keywords", []string{})
	v.SetDefault("report.cities", []string{"札幌市", "東京都", "大阪市", "福岡市"})
	v.SetDefault("report.schema.table", schema.Table)
	v.SetDefault("report.schema.date_caption_index", schema.DateCaptionIndex)
	v.SetDefault("report.schema.header_index", schema.HeaderIndex)
	v.SetDefault("report.schema.data_index", schema.DataIndex)
	v.SetDefault("report.schema.header_cell", schema.HeaderCell)
	v.SetDefault("report.schema.data_cell", schema.DataCell)
	v.SetDefault("report.schema.item_name", schema.ItemName)
	v.SetDefault("report.schema.city_cell_classes", schema.CityCellClasses)
	v.SetDefault("report.schema.city_label", schema.CityLabel)
	v.SetDefault("report.schema.graph_marker", schema.GraphMarker)
	v.SetDefault("schedule.cron", "0 9 * * 1-6")
	v.SetDefault("schedule.timezone", "Asia/Tokyo")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.job", "agrishikyo_relay")
	v.SetDefault("logging.development", false)
}

func bindSecrets(v *viper.Viper) error {
	bindings := map[string][]string{
		"slack.webhook_url": {"AGRI_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL"},
		"auth.user_id":      {"AGRI_AUTH_USER_ID", "USER_INFO_ID"},
		"auth.password":     {"AGRI_AUTH_PASSWORD", "USER_INFO_PW"},
		"auth.read_code":    {"AGRI_AUTH_READ_CODE", "READ_CODE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Slack.WebhookURL == "":
		return fmt.Errorf("slack.webhook_url must be set (SLACK_WEBHOOK_URL)")
	case c.Auth.UserID == "":
		return fmt.Errorf("auth.user_id must be set (USER_INFO_ID)")
	case c.Auth.Password == "":
		return fmt.Errorf("auth.password must be set (USER_INFO_PW)")
	case c.Auth.ReadCode == "":
		return fmt.Errorf("auth.read_code must be set (READ_CODE)")
	case c.Site.LoginURL == "":
		return fmt.Errorf("site.login_url must be set")
	case c.Site.ReportPath == "" || c.Site.ViewMode == "" || c.Site.ItemSelect == "":
		return fmt.Errorf("site.report_path, site.view_mode and site.item_select must be set")
	case c.Site.LogoutClass == "":
		return fmt.Errorf("site.logout_class must be set")
	case c.Browser.ActionTimeout <= 0:
		return fmt.Errorf("browser.action_timeout must be > 0")
	case c.Browser.RunTimeout <= 0:
		return fmt.Errorf("browser.run_timeout must be > 0")
	case c.Browser.SettleDelay < 0 || c.Browser.KeywordInterval < 0:
		return fmt.Errorf("browser.settle_delay and browser.keyword_interval must be >= 0")
	case c.Slack.Timeout <= 0:
		return fmt.Errorf("slack.timeout must be > 0")
	case len(c.Report.Cities) == 0:
		return fmt.Errorf("report.cities must not be empty")
	case c.Server.Port <= 0:
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Report.Keywords) == 0 {
		if _, ok := keywordSets[c.Report.KeywordSet]; !ok {
			return fmt.Errorf("report.keyword_set must be %q or %q, got %q",
				KeywordSetUnit, KeywordSetQuote, c.Report.KeywordSet)
		}
	}
	if err := c.Report.Schema.Validate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// Keywords returns the commodities to query, explicit keywords winning over
// the named keyword set.
func (c Config) Keywords() []string {
	if len(c.Report.Keywords) > 0 {
		return append([]string(nil), c.Report.Keywords...)
	}
	return append([]string(nil), keywordSets[c.Report.KeywordSet]...)
}

// LogoutSelector returns the CSS selector of the logout control.
func (c Config) LogoutSelector() string {
	return "." + c.Site.LogoutClass
}

// Navigator returns the report navigation settings.
func (c Config) Navigator() report.NavigatorConfig {
	return report.NavigatorConfig{
		ReportPath: c.Site.ReportPath,
		ViewMode:   c.Site.ViewMode,
		ItemSelect: c.Site.ItemSelect,
		// A selection re-renders the report in place; give it as long as
		// any other browser action.
		ItemTimeout: c.Browser.ActionTimeout,
	}
}

func mask(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-2)
}
