package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/config"
	"github.com/chronoflow/chronoflow/internal/logging"
)

func (a *App) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "View or edit configuration",
		Long: `Interactive configuration management.

If no config file exists, creates one with default values.
Otherwise, displays current config and allows editing.

Example:
  chronoflow config`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInteractive()
		},
	}
}

func runConfigInteractive() error {
	configPath := config.DefaultConfigPath()
	fmt.Printf("Config file: %s\n\n", configPath)

	// Load existing config or create defaults
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Check if file exists
	_, fileErr := os.Stat(configPath)
	isNew := os.IsNotExist(fileErr)

	if isNew {
		fmt.Println("No config file found. Creating with default values...")
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Created %s\n\n", configPath)
	}

	// Display current config
	printConfig(cfg)

	// Ask if user wants to edit
	if !promptYesNo("\nWould you like to edit the configuration?") {
		return nil
	}

	// Interactive editing
	reader := bufio.NewReader(os.Stdin)

	cfg.Schedule.DayStart = promptValue(reader, "Day start", cfg.Schedule.DayStart)
	cfg.Schedule.DayEnd = promptValue(reader, "Day end", cfg.Schedule.DayEnd)
	cfg.Schedule.Workdays = promptSlice(reader, "Workdays (comma-separated)", cfg.Schedule.Workdays)
	cfg.Schedule.Timezone = promptValue(reader, "Timezone (IANA, empty for local)", cfg.Schedule.Timezone)
	cfg.LLM.Provider = promptValue(reader, "LLM provider (openai, copilot, ollama, lmstudio)", cfg.LLM.Provider)
	cfg.LLM.Model = promptValue(reader, "LLM model", cfg.LLM.Model)
	cfg.LLM.BaseURL = promptValue(reader, "LLM base URL (Ollama/LM Studio)", cfg.LLM.BaseURL)
	cfg.Storage.Driver = promptValue(reader, "Storage driver (sqlite, postgres)", cfg.Storage.Driver)
	if cfg.Storage.Driver == "postgres" {
		cfg.Storage.DSN = promptValue(reader, "Postgres DSN", cfg.Storage.DSN)
	} else {
		cfg.Storage.DBPath = promptValue(reader, "Database path", cfg.Storage.DBPath)
	}
	cfg.Server.Listen = promptValue(reader, "HTTP listen address", cfg.Server.Listen)
	cfg.Telegram.BotUsername = promptValue(reader, "Telegram bot username", cfg.Telegram.BotUsername)

	// Validate before saving
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Save
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("\nConfiguration saved!")
	return nil
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current configuration:")
	fmt.Println("──────────────────────")
	fmt.Println("[schedule]")
	fmt.Printf("  day_start        = %s\n", cfg.Schedule.DayStart)
	fmt.Printf("  day_end          = %s\n", cfg.Schedule.DayEnd)
	fmt.Printf("  workdays         = %s\n", strings.Join(cfg.Schedule.Workdays, ", "))
	fmt.Printf("  visible_days     = %d\n", cfg.Schedule.VisibleDays)
	fmt.Printf("  timezone         = %s\n", cfg.Location())
	fmt.Println("\n[llm]")
	fmt.Printf("  provider         = %s\n", cfg.LLM.Provider)
	fmt.Printf("  model            = %s\n", cfg.LLM.Model)
	fmt.Printf("  base_url         = %s\n", cfg.LLM.BaseURL)
	fmt.Printf("  api_key          = %s\n", secret(cfg.LLM.APIKey))
	fmt.Println("\n[storage]")
	fmt.Printf("  driver           = %s\n", cfg.Storage.Driver)
	if cfg.Storage.Driver == "postgres" {
		fmt.Printf("  dsn              = %s\n", secret(cfg.Storage.DSN))
	} else {
		fmt.Printf("  db_path          = %s\n", cfg.Storage.DBPath)
	}
	fmt.Println("\n[server]")
	fmt.Printf("  listen           = %s\n", cfg.Server.Listen)
	fmt.Printf("  jwt_secret       = %s\n", secret(cfg.Server.JWTSecret))
	fmt.Printf("  token_ttl        = %s\n", cfg.Server.TokenTTL)
	fmt.Printf("  cors_origins     = %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
	fmt.Println("\n[telegram]")
	fmt.Printf("  bot_token        = %s\n", secret(cfg.Telegram.BotToken))
	fmt.Printf("  bot_username     = %s\n", cfg.Telegram.BotUsername)
	fmt.Printf("  reminders        = %t (%d min before)\n", cfg.Telegram.Reminders, cfg.Telegram.ReminderLeadMinutes)
	fmt.Println("\n[log]")
	fmt.Printf("  level            = %s\n", cfg.Log.Level)
	fmt.Printf("  format           = %s\n", cfg.Log.Format)
}

// secret hides a configured secret, showing only whether it is set.
func secret(v string) string {
	if v == "" {
		return formatMuted("(not set)")
	}
	return logging.Redacted("", v).String
}

func promptYesNo(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", question)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func promptValue(reader *bufio.Reader, label, current string) string {
	if current == "" {
		fmt.Printf("  %s: ", label)
	} else {
		fmt.Printf("  %s [%s]: ", label, current)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	return input
}

func promptSlice(reader *bufio.Reader, label string, current []string) []string {
	currentStr := strings.Join(current, ", ")
	fmt.Printf("  %s [%s]: ", label, currentStr)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
