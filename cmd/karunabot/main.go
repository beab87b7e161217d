package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/karuna-es/karunabot/internal/api"
	"github.com/karuna-es/karunabot/internal/appointments"
	"github.com/karuna-es/karunabot/internal/genai"
	"github.com/karuna-es/karunabot/internal/lockfile"
	"github.com/karuna-es/karunabot/internal/messaging"
	"github.com/karuna-es/karunabot/internal/store"
	"github.com/karuna-es/karunabot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for KarunaBot state data
	DefaultStateDir = "/var/lib/karunabot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "karunabot.db"
)

func main() {
	// Load .env before the logger so KARUNABOT_DEBUG from the file applies
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Only one instance may own a state directory at a time
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ai := buildAIClient(flags)
	msgService, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}
	recorder := buildRecorder(flags)

	apiOpts := buildAPIOptions(flags, msgService, recorder)

	slog.Info("Bootstrapping KarunaBot with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "provider", *flags.provider)
	if err := api.Run(st, ai, apiOpts...); err != nil {
		slog.Error("KarunaBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("KarunaBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	XAIKey       string
	XAIModel     string
	APIAddr      string
	Provider     string
	MetaToken    string
	MetaNumberID string
	MetaVersion  string
	VerifyToken  string
	SheetID      string
	SheetToken   string
	MeetLink     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	xaiKey       *string
	xaiModel     *string
	apiAddr      *string
	provider     *string
	metaToken    *string
	metaNumberID *string
	metaVersion  *string
	verifyToken  *string
	sheetID      *string
	sheetToken   *string
	meetLink     *string
}

// initializeLogger sets up structured logging. KARUNABOT_DEBUG=true lowers
// the level to debug; the default level is info.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("KARUNABOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables
func loadEnvironmentConfig() Config {
	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("KARUNABOT_STATE_DIR"),
		XAIKey:       os.Getenv("XAI_API_KEY"),
		XAIModel:     os.Getenv("XAI_MODEL"),
		APIAddr:      os.Getenv("API_ADDR"),
		Provider:     os.Getenv("MESSAGING_PROVIDER"),
		MetaToken:    os.Getenv("META_JWT_TOKEN"),
		MetaNumberID: os.Getenv("META_NUMBER_ID"),
		MetaVersion:  os.Getenv("META_VERSION"),
		VerifyToken:  os.Getenv("META_VERIFY_TOKEN"),
		SheetID:      os.Getenv("GOOGLE_SHEET_ID"),
		SheetToken:   os.Getenv("GOOGLE_API_TOKEN"),
		MeetLink:     os.Getenv("MEET_LINK"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No KARUNABOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"KARUNABOT_STATE_DIR", config.StateDir,
		"XAI_API_KEY_SET", config.XAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_PROVIDER", config.Provider,
		"META_NUMBER_ID_SET", config.MetaNumberID != "",
		"GOOGLE_SHEET_ID_SET", config.SheetID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for KarunaBot data (overrides $KARUNABOT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the config store (overrides $DATABASE_URL)"),
		xaiKey:       flag.String("xai-api-key", config.XAIKey, "x.ai API key (overrides $XAI_API_KEY)"),
		xaiModel:     flag.String("xai-model", config.XAIModel, "x.ai model name (overrides $XAI_MODEL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		provider:     flag.String("provider", config.Provider, "messaging provider: meta or twilio (overrides $MESSAGING_PROVIDER)"),
		metaToken:    flag.String("meta-token", config.MetaToken, "Meta Graph API access token (overrides $META_JWT_TOKEN)"),
		metaNumberID: flag.String("meta-number-id", config.MetaNumberID, "Meta business phone number id (overrides $META_NUMBER_ID)"),
		metaVersion:  flag.String("meta-version", config.MetaVersion, "Meta Graph API version (overrides $META_VERSION)"),
		verifyToken:  flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $META_VERIFY_TOKEN)"),
		sheetID:      flag.String("sheet-id", config.SheetID, "Google Sheet id for appointments (overrides $GOOGLE_SHEET_ID)"),
		sheetToken:   flag.String("sheet-token", config.SheetToken, "Google API bearer token (overrides $GOOGLE_API_TOKEN)"),
		meetLink:     flag.String("meet-link", config.MeetLink, "static meeting link for confirmations (overrides $MEET_LINK)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"xaiKeySet", *flags.xaiKey != "",
		"apiAddr", *flags.apiAddr,
		"provider", *flags.provider)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", *flags.stateDir)
		return err
	}
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		dbDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating directory for file-based database", "db_dir", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			slog.Error("Failed to create database directory", "error", err, "db_dir", dbDir)
			return err
		}
	}
	return nil
}

// buildStore opens the configuration store matching the DSN type
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildAIClient constructs the AI client, or nil when no key is configured
func buildAIClient(flags Flags) genai.ClientInterface {
	if *flags.xaiKey == "" && os.Getenv("XAI_API_KEY") == "" {
		slog.Warn("No x.ai API key configured, conversational replies disabled")
		return nil
	}
	var genaiOpts []genai.Option
	if *flags.xaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.xaiKey))
	}
	if *flags.xaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.xaiModel))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to initialize AI client, conversational replies disabled", "error", err)
		return nil
	}
	return client
}

// buildMessagingService constructs the outbound transport for the configured provider
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if strings.EqualFold(*flags.provider, "twilio") {
		slog.Debug("Using Twilio messaging provider")
		return messaging.NewTwilioService()
	}

	slog.Debug("Using Meta messaging provider")
	var metaOpts []messaging.MetaOption
	if *flags.metaToken != "" {
		metaOpts = append(metaOpts, messaging.WithAccessToken(*flags.metaToken))
	}
	if *flags.metaNumberID != "" {
		metaOpts = append(metaOpts, messaging.WithNumberID(*flags.metaNumberID))
	}
	if *flags.metaVersion != "" {
		metaOpts = append(metaOpts, messaging.WithAPIVersion(*flags.metaVersion))
	}
	return messaging.NewMetaService(metaOpts...)
}

// buildRecorder constructs the appointment recorder, or nil when no sheet is configured
func buildRecorder(flags Flags) appointments.Recorder {
	if *flags.sheetID == "" || *flags.sheetToken == "" {
		slog.Debug("No Google Sheet configured, scheduling signals will be discarded")
		return nil
	}
	rec, err := appointments.NewSheetsRecorder(
		appointments.WithSpreadsheetID(*flags.sheetID),
		appointments.WithAccessToken(*flags.sheetToken),
		appointments.WithMeetLink(*flags.meetLink),
	)
	if err != nil {
		slog.Error("Failed to initialize sheets recorder, scheduling signals will be discarded", "error", err)
		return nil
	}
	return rec
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, msgService messaging.Service, recorder appointments.Recorder) []api.Option {
	apiOpts := []api.Option{api.WithMessagingService(msgService)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	if recorder != nil {
		apiOpts = append(apiOpts, api.WithRecorder(recorder))
	}
	return apiOpts
}
