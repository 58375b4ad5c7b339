package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DatabaseURI string

	TelegramToken  string
	TelegramChatID int64

	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	PushPlusToken string
	NotifyCommand string
	SpeakCommand  string

	LogLevel string

	// ReminderConfigPath names an optional YAML file overriding Reminder.
	ReminderConfigPath string
	Reminder           ReminderSettings
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	chatID, err := getEnvInt64("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}
	reminder, err := reminderFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBDriver:           getEnvOrDefault("DB_DRIVER", "sqlite"),
		DatabaseURI:        getEnvOrDefault("DATABASE_URI", "schedules.db"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:     chatID,
		AIAPIKey:           os.Getenv("AI_API_KEY"),
		AIBaseURL:          getEnvOrDefault("AI_BASE_URL", "https://api.siliconflow.cn/v1"),
		AIModel:            getEnvOrDefault("AI_MODEL", "Qwen/Qwen3-32B"),
		PushPlusToken:      os.Getenv("PUSHPLUS_TOKEN"),
		NotifyCommand:      os.Getenv("NOTIFY_COMMAND"),
		SpeakCommand:       os.Getenv("SPEAK_COMMAND"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		ReminderConfigPath: os.Getenv("REMINDER_CONFIG"),
		Reminder:           reminder,
	}

	if cfg.ReminderConfigPath != "" {
		settings, err := LoadReminderFile(cfg.ReminderConfigPath, cfg.Reminder)
		if err != nil {
			return nil, err
		}
		cfg.Reminder = settings
	}
	return cfg, nil
}

// EnvReminder returns the reminder settings from the environment alone, the
// base a reloaded YAML file is overlaid on.
func EnvReminder() (ReminderSettings, error) {
	return reminderFromEnv()
}

func reminderFromEnv() (ReminderSettings, error) {
	s := DefaultReminderSettings()

	count, err := getEnvInt64("REMINDER_REPEAT_COUNT", int64(s.RepeatCount))
	if err != nil {
		return s, err
	}
	s.RepeatCount = int(count)

	interval, err := getEnvInt64("REMINDER_REPEAT_INTERVAL", int64(s.RepeatInterval/time.Second))
	if err != nil {
		return s, err
	}
	s.RepeatInterval = time.Duration(interval) * time.Second

	if v := os.Getenv("REMINDER_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("invalid REMINDER_TICK %q: %w", v, err)
		}
		s.TickInterval = d
	}

	if s.CalendarAware, err = getEnvBool("REMINDER_CALENDAR_AWARE", s.CalendarAware); err != nil {
		return s, err
	}
	if s.Polish, err = getEnvBool("REMINDER_POLISH", s.Polish); err != nil {
		return s, err
	}
	return s.Normalize(), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
