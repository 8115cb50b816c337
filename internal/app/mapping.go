package app

import (
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/tracker"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	f := cfg.Logging.File
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled:    f.IsEnabled(),
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	timeout, err := config.ParseDurationField("telegram.timeout", cfg.Telegram.Timeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:   cfg.Telegram.Token,
		APIURL:  cfg.Telegram.APIURL,
		Offline: cfg.Telegram.Offline,
		Timeout: timeout,
	}, nil
}

func mapHomeworkConfig(cfg *config.Config) (homework.Config, error) {
	timeout, err := config.ParseDurationField("homework.timeout", cfg.Homework.Timeout)
	if err != nil {
		return homework.Config{}, err
	}
	return homework.Config{
		Endpoint: strings.TrimSpace(cfg.Homework.Endpoint),
		Token:    cfg.Homework.Token,
		Timeout:  timeout,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	chatID, err := config.ParseChatID(string(cfg.Telegram.ChatID))
	if err != nil {
		return notifier.Config{}, err
	}
	n := cfg.Notifier
	return notifier.Config{
		Target:          kit.ChatTarget{ChatID: chatID, ThreadID: cfg.Telegram.ThreadID},
		DisablePreview:  cfg.Telegram.DisablePreview,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       config.DurationOr(n.RetryBase, 500*time.Millisecond),
		RetryMaxDelay:   config.DurationOr(n.RetryMaxDelay, 10*time.Second),
		SendTimeout:     config.DurationOr(n.SendTimeout, 10*time.Second),
		DedupWindow:     config.DurationOr(n.DedupWindow, 0),
		DedupMaxEntries: n.DedupMaxEntries,
	}, nil
}

func mapTrackerConfig(cfg *config.Config) (tracker.Config, error) {
	spec, err := tracker.ParseSchedule(cfg.Poll.Schedule)
	if err != nil {
		return tracker.Config{}, err
	}
	loc, err := cfg.Poll.Location()
	if err != nil {
		return tracker.Config{}, err
	}
	return tracker.Config{
		Schedule:      spec,
		Location:      loc,
		ReportErrors:  cfg.Poll.ReportErrors,
		InitialCursor: cfg.Poll.InitialCursor,
	}, nil
}
