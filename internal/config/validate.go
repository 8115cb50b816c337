package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hwbot/internal/tracker"
	logx "hwbot/pkg/logx"
)

// ParseChatID parses a Telegram chat id ("123", "-100123").
func ParseChatID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("telegram.chat_id is required (or set " + EnvTelegramChatID + ")")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.chat_id: invalid chat id %q", raw)
	}
	if id == 0 {
		return 0, errors.New("telegram.chat_id must be non-zero")
	}
	return id, nil
}

// Location resolves poll.timezone (time.Local when empty).
func (p PollConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(p.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("poll.timezone: %w", err)
	}
	return loc, nil
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Homework.Token) == "" {
		add(errors.New("homework.token is required (or set " + EnvPraktikumToken + ")"))
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token is required (or set " + EnvTelegramToken + ")"))
	}
	_, err := ParseChatID(string(cfg.Telegram.ChatID))
	add(err)
	if cfg.Telegram.ThreadID < 0 {
		add(errors.New("telegram.thread_id must be >= 0"))
	}

	if ep := strings.TrimSpace(cfg.Homework.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("homework.endpoint: invalid url %q", ep))
		}
	}
	if api := strings.TrimSpace(cfg.Telegram.APIURL); api != "" {
		u, err := url.Parse(api)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("telegram.api_url: invalid url %q", api))
		}
	}

	for path, raw := range map[string]string{
		"homework.timeout":         cfg.Homework.Timeout,
		"telegram.timeout":         cfg.Telegram.Timeout,
		"notifier.retry_base":      cfg.Notifier.RetryBase,
		"notifier.retry_max_delay": cfg.Notifier.RetryMaxDelay,
		"notifier.send_timeout":    cfg.Notifier.SendTimeout,
		"notifier.dedup_window":    cfg.Notifier.DedupWindow,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}
	if cfg.Notifier.RatePerSec < 0 {
		add(errors.New("notifier.rate_per_sec must be >= 0"))
	}
	if cfg.Notifier.RetryMax < 0 {
		add(errors.New("notifier.retry_max must be >= 0"))
	}

	if _, err := tracker.ParseSchedule(cfg.Poll.Schedule); err != nil {
		add(fmt.Errorf("poll.schedule: %w", err))
	}
	_, err = cfg.Poll.Location()
	add(err)
	if cfg.Poll.InitialCursor < 0 {
		add(errors.New("poll.initial_cursor must be >= 0"))
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	f := cfg.Logging.File
	if f.MaxSizeMB < 0 || f.MaxBackups < 0 || f.MaxAgeDays < 0 {
		add(errors.New("logging.file: size/backups/age must be >= 0"))
	}

	return errors.Join(errs...)
}
