package config

import (
	"strings"

	logx "hwbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log-safe attributes for them. Tokens are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID ||
		ot.APIURL != nt.APIURL || ot.Timeout != nt.Timeout || ot.Offline != nt.Offline ||
		ot.DisablePreview != nt.DisablePreview {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.chat_id", string(nt.ChatID)),
			logx.Int("telegram.thread_id", nt.ThreadID),
		)
	}

	oh, nh := oldCfg.Homework, newCfg.Homework
	if oh.Token != nh.Token || oh.Endpoint != nh.Endpoint || oh.Timeout != nh.Timeout {
		changed = append(changed, "homework")
		attrs = append(attrs,
			logx.Bool("homework.token_changed", oh.Token != nh.Token),
			logx.String("homework.endpoint", strings.TrimSpace(nh.Endpoint)),
		)
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.schedule", newCfg.Poll.Schedule),
			logx.String("poll.timezone", newCfg.Poll.Timezone),
			logx.Bool("poll.report_errors", newCfg.Poll.ReportErrors),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
		)
	}

	ol, nl := oldCfg.Logging, newCfg.Logging
	if ol.Level != nl.Level || ol.ConsoleEnabled() != nl.ConsoleEnabled() ||
		ol.File.IsEnabled() != nl.File.IsEnabled() || ol.File.Path != nl.File.Path ||
		ol.File.MaxSizeMB != nl.File.MaxSizeMB || ol.File.MaxBackups != nl.File.MaxBackups ||
		ol.File.MaxAgeDays != nl.File.MaxAgeDays || ol.File.Compress != nl.File.Compress {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.file", nl.File.IsEnabled()),
		)
	}

	if oldCfg.EnvFile != newCfg.EnvFile {
		changed = append(changed, "env_file")
	}
	return changed, attrs
}
