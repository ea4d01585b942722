package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"http": map[string]interface{}{
			"addr":       ":8080",
			"static_dir": "./static",
			"tls_cert":   "",
			"tls_key":    "",
			"public_url": "http://localhost:8080/",
		},
		"storage": map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{
				"path":  "reminders.json",
				"watch": true,
			},
			"sqlite": map[string]interface{}{
				"path": "reminders.db",
			},
			"postgres": map[string]interface{}{
				"url": "",
			},
			"mongo": map[string]interface{}{
				"uri":      "mongodb://localhost:27017",
				"database": "reminder_agent",
			},
			"redis": map[string]interface{}{
				"url": "redis://localhost:6379/0",
			},
		},
		"scheduler": map[string]interface{}{
			"lead_time": "0s",
		},
		"notifications": map[string]interface{}{
			"title":     "Reminder",
			"snooze":    "0s", // 0 disables the snooze button
			"providers": []string{ProviderLocal},
			"telegram": map[string]interface{}{
				"bot_token":    "",
				"chat_id":      "",
				"poll_timeout": 30,
			},
			"kafka": map[string]interface{}{
				"brokers":       []string{"localhost:9092"},
				"topic":         "reminder-notifications",
				"actions_topic": "reminder-notification-actions",
				"group_id":      "reminder-agent",
			},
		},
		"badge": map[string]interface{}{
			"hide_zero":  false,
			"due_color":  "#f59e0b",
			"idle_color": "#666",
		},
		"ui": map[string]interface{}{
			"years_ahead": 2,
		},
		"mcp": map[string]interface{}{
			"enabled": true,
			"path":    "/mcp",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "json",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
