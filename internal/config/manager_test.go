package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
telegram:
  token: tg-file-token
  chat_id: "-100123"
homework:
  token: hw-file-token
poll:
  schedule: 5m
  report_errors: true
logging:
  level: debug
  file:
    enabled: false
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func noEnv(string) (string, bool) { return "", false }

func newTestManager(path string, env map[string]string) *Manager {
	m := NewManager(path)
	m.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	return m
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := newTestManager(writeFile(t, dir, "config.yaml", validYAML), nil)
	m.lookupEnv = noEnv

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.ChatID != "-100123" || cfg.Homework.Token != "hw-file-token" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Poll.ReportErrors || cfg.Poll.Schedule != "5m" {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if cfg.Logging.File.IsEnabled() || !cfg.Logging.ConsoleEnabled() {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseNumericChatID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, file, body, want string
	}{
		{"yaml negative", "config.yaml", "telegram:\n  chat_id: -100123\n", "-100123"},
		{"yaml positive", "config.yml", "telegram:\n  chat_id: 4242\n", "4242"},
		{"yaml large", "config.yaml", "telegram:\n  chat_id: -1001234567890\n", "-1001234567890"},
		{"json number", "config.json", `{"telegram":{"chat_id":-100123}}`, "-100123"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := newTestManager(writeFile(t, t.TempDir(), tc.file, tc.body), nil)
			m.lookupEnv = noEnv
			cfg, err := m.Parse()
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if string(cfg.Telegram.ChatID) != tc.want {
				t.Fatalf("chat_id = %q, want %q", cfg.Telegram.ChatID, tc.want)
			}
			id, err := ParseChatID(string(cfg.Telegram.ChatID))
			if err != nil || fmt.Sprint(id) != tc.want {
				t.Fatalf("ParseChatID = %d, %v", id, err)
			}
		})
	}
}

func TestParseRejectsNonScalarChatID(t *testing.T) {
	t.Parallel()
	m := newTestManager(writeFile(t, t.TempDir(), "config.yaml", "telegram:\n  chat_id: [1, 2]\n"), nil)
	m.lookupEnv = noEnv
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for list chat_id")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"chat_id":"42"},"poll":{"schedule":"*/10 * * * *"}}`)
	m := newTestManager(p, nil)

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.ChatID != "42" || cfg.Poll.Schedule != "*/10 * * * *" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"config.yaml": "poll:\n  interval: 5m\n",
		"config.json": `{"poll":{"schedule":"5m"}}{"poll":{}}`,
	} {
		m := newTestManager(writeFile(t, dir, name, body), nil)
		if _, err := m.Parse(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseMissingFileUsesEnvironment(t *testing.T) {
	t.Parallel()
	m := newTestManager(filepath.Join(t.TempDir(), "absent.yaml"), map[string]string{
		EnvPraktikumToken: "hw-env",
		EnvTelegramToken:  "tg-env",
		EnvTelegramChatID: "777",
	})

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Homework.Token != "hw-env" || cfg.Telegram.Token != "tg-env" || cfg.Telegram.ChatID != "777" {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := newTestManager(writeFile(t, dir, "config.yaml", validYAML), map[string]string{
		EnvPraktikumToken: "hw-env",
		EnvTelegramChatID: "  ",
	})

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Homework.Token != "hw-env" {
		t.Fatalf("homework token = %q", cfg.Homework.Token)
	}
	// Blank variables do not clobber file values.
	if cfg.Telegram.ChatID != "-100123" || cfg.Telegram.Token != "tg-file-token" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "HWBOT_TEST_ENV_FILE_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	p := writeFile(t, t.TempDir(), "test.env", key+"=from-file\n")
	if err := LoadEnvFile(p); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("%s = %q", key, got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file: %v", err)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Parallel()
	m := newTestManager(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	_, err := m.Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{EnvPraktikumToken, EnvTelegramToken, EnvTelegramChatID} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
	if m.Get() != nil {
		t.Fatal("invalid config was committed")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", ChatID: "1"},
			Homework: HomeworkConfig{Token: "h"},
		}
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("minimal config: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"chat id", func(c *Config) { c.Telegram.ChatID = "abc" }, "telegram.chat_id"},
		{"zero chat id", func(c *Config) { c.Telegram.ChatID = "0" }, "telegram.chat_id"},
		{"endpoint", func(c *Config) { c.Homework.Endpoint = "not a url" }, "homework.endpoint"},
		{"schedule", func(c *Config) { c.Poll.Schedule = "soon" }, "poll.schedule"},
		{"timezone", func(c *Config) { c.Poll.Timezone = "Mars/Olympus" }, "poll.timezone"},
		{"duration", func(c *Config) { c.Notifier.SendTimeout = "-1s" }, "notifier.send_timeout"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"retry", func(c *Config) { c.Notifier.RetryMax = -1 }, "notifier.retry_max"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mut(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestParseChatID(t *testing.T) {
	t.Parallel()
	id, err := ParseChatID(" -100123 ")
	if err != nil || id != -100123 {
		t.Fatalf("ParseChatID = %d, %v", id, err)
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.yaml")
	ch := m.Subscribe(1)
	first, second := &Config{EnvFile: "a"}, &Config{EnvFile: "b"}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatalf("got %+v, want newest", got)
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	m.publish(first)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", validYAML)
	m := newTestManager(p, nil)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Invalid content is rejected and never published.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	changed := strings.Replace(validYAML, "schedule: 5m", "schedule: 10m", 1)
	for {
		writeFile(t, dir, "config.yaml", "poll:\n  schedule: nope\n")
		writeFile(t, dir, "config.yaml", changed)
		select {
		case cfg := <-ch:
			if cfg.Poll.Schedule != "10m" {
				t.Fatalf("published schedule = %q", cfg.Poll.Schedule)
			}
			if m.Get().Poll.Schedule != "10m" {
				t.Fatal("published config not committed")
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no config published")
		}
	}
}

func TestSummarizeChangeHidesTokens(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Telegram: TelegramConfig{Token: "old-secret"}, Poll: PollConfig{Schedule: "5m"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "new-secret"}, Poll: PollConfig{Schedule: "1m"}}
	changed, attrs := SummarizeChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "telegram,poll" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if c, _ := SummarizeChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}
