package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvPraktikumToken = "PRAKTIKUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

const defaultEnvFile = ".env"

// LoadEnvFile loads KEY=VALUE pairs into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overlays non-empty credential variables onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Homework.Token, EnvPraktikumToken)
	set(&cfg.Telegram.Token, EnvTelegramToken)
	chat := string(cfg.Telegram.ChatID)
	set(&chat, EnvTelegramChatID)
	cfg.Telegram.ChatID = ChatID(chat)
}
