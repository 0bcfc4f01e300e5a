package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			DefaultProvider: "openai",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:        true,
				APIBase:        "https://api.openai.com/v1",
				APIKey:         "${OPENAI_API_KEY}",
				DefaultModel:   "gpt-3.5-turbo",
				TimeoutSeconds: 60,
			},
			"ollama": {
				Enabled:        false,
				APIBase:        "http://localhost:11434",
				DefaultModel:   "llama3.1:8b",
				TimeoutSeconds: 120,
			},
		},
		Gmail: GmailConfig{
			CredentialsFile: "${GMAIL_CREDENTIALS_FILE:-credentials.json}",
			TokenDB:         "~/.inboxtriage/tokens.db",
			Account:         "default",
			User:            "me",
			Query:           "is:unread",
			MaxResults:      100,
			From:            "me",
		},
		Triage: TriageConfig{
			SendMode:  SendModeReportOnly,
			BodyLimit: 1000,
			Classify: CompletionConfig{
				MaxTokens:   10,
				Temperature: 0,
			},
			Draft: CompletionConfig{
				MaxTokens:   150,
				Temperature: 0.7,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}
