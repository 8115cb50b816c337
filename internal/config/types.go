package config

import (
	"encoding/json"
	"fmt"
)

// Config is the on-disk configuration (YAML or JSON).
//
// Credentials normally come from the environment (see ApplyEnv); the token
// fields exist so a file-only deployment is still possible.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Homework HomeworkConfig `json:"homework"`
	Poll     PollConfig     `json:"poll"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`

	// EnvFile is loaded with godotenv before the environment overlay.
	// Default: ".env" next to the working directory. A missing file is fine.
	EnvFile string `json:"env_file,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   ChatID `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`

	// APIURL overrides the Bot API base URL (self-hosted bot API servers).
	APIURL string `json:"api_url,omitempty"`
	// Timeout is a Go duration string for Bot API HTTP calls.
	Timeout string `json:"timeout,omitempty"`
	// Offline skips the getMe call at startup.
	Offline bool `json:"offline,omitempty"`

	DisablePreview bool `json:"disable_preview,omitempty"`
}

type HomeworkConfig struct {
	Token    string `json:"token,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// PollConfig controls the poll loop.
//
// Schedule accepts a duration ("5m"), HH:MM ("00:05") or a cron expression
// ("*/5 * * * *"). Timezone applies to cron schedules only.
type PollConfig struct {
	Schedule     string `json:"schedule,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	ReportErrors bool   `json:"report_errors,omitempty"`

	// InitialCursor replaces "now" as the first from_date (0 = now).
	InitialCursor int64 `json:"initial_cursor,omitempty"`
}

// NotifierConfig tunes delivery. All durations are Go duration strings.
type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
	// Console defaults to true when omitted.
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	// Enabled defaults to true when omitted.
	Enabled    *bool  `json:"enabled,omitempty"`
	Path       string `json:"path,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool { return l.Console == nil || *l.Console }

func (f LoggingFile) IsEnabled() bool { return f.Enabled == nil || *f.Enabled }

// ChatID holds a Telegram chat id as written in the file. Both "-100123" and
// a bare -100123 are accepted.
type ChatID string

func (c *ChatID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = ChatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("chat_id must be a string or an integer: %w", err)
	}
	*c = ChatID(n.String())
	return nil
}
