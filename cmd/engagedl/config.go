package main

import (
	"fmt"
	"os"

	"engagedl/pkg/config"
	"engagedl/pkg/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage engagedl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (ENGAGEDL_*, .env files included)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.engagedl.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The consumer secret is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# engagedl configuration

api:
  # Application credentials. Prefer 'engagedl auth login' or the
  # ENGAGEDL_CONSUMER_KEY / ENGAGEDL_CONSUMER_SECRET variables.
  consumer_key: ""
  consumer_secret: ""
  token_url: "https://api.twitter.com/oauth2/token"
  # totals, 28hr, historical or a full URL
  endpoint: "totals"
  # Defaults to favorites, retweets and replies
  # engagement_types: ["favorites", "retweets", "replies"]
  owned: false
  timeout: 30s

download:
  # Persist results every N batches of 250 identifiers
  checkpoint_every: 100
  # Add zero rows for identifiers a response leaves out
  include_missing: false
  start_offset: 0

rate_limit:
  # Never below 10s
  min_interval: 10s

retry:
  # Retries for writing results, not for API batches
  max_attempts: 3
  initial_delay: 1s
  max_delay: 10s
  writes_per_minute: 30

storage:
  # .csv, .json, .db or a redis:// URL
  output: "engagement.csv"
  redis_key: "engagedl:rows"
  sqlite_table: "engagement"

metrics:
  # e.g. ":9090"; empty disables the Prometheus endpoint
  addr: ""

logging:
  level: "info"
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = ".engagedl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		os.Exit(1)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'engagedl auth login' to store your API credentials")
	fmt.Println("2. Run 'engagedl config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'engagedl download <ids-file>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (ENGAGEDL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched default locations)")
	}
	fmt.Println("4. Default values")
}

// maskedConfig copies cfg with the credentials shortened for display
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	display.API.ConsumerKey = mask(display.API.ConsumerKey)
	display.API.ConsumerSecret = mask(display.API.ConsumerSecret)
	return display
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	if cfg.API.ConsumerKey == "" || cfg.API.ConsumerSecret == "" {
		ui.PrintWarning("Consumer key and secret not configured", "stored accounts will be used")
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Endpoint: %s\n", cfg.API.Endpoint)
	fmt.Printf("  Output: %s\n", cfg.Storage.Output)
	fmt.Printf("  Checkpoint every: %d batches\n", cfg.Download.CheckpointEvery)
	fmt.Printf("  Minimum interval: %s\n", cfg.RateLimit.MinInterval)
	fmt.Printf("  Write retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
