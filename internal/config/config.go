// Package config loads the crawler's process-boundary configuration: a
// .env file (if present) followed by required environment variables,
// validated all-or-nothing before any network or disk I/O happens.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const defaultBotURL = "https://example.invalid/bot"

// Config is the resolved process configuration, per §6.3.
type Config struct {
	BotName    string
	BotVersion string
	BotURL     string
	ArchiveDir string
	From       string

	DBURL string

	MongoURL      string
	MongoDatabase string

	KafkaBrokers string
	KafkaTopic   string

	StatusAddr string
}

// Load reads a .env file in the working directory (a missing file is not
// an error) and then the process environment, per §4.J. Missing required
// variables are fatal: logger logs every missing name and the process
// exits non-zero.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	required := map[string]*string{}
	cfg := Config{BotVersion: "1.0", BotURL: defaultBotURL}

	required["BOT_NAME"] = &cfg.BotName
	required["ARCHIVE_DIR"] = &cfg.ArchiveDir
	required["FROM"] = &cfg.From

	var missing []string
	for name, dst := range required {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		*dst = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		logger.Error("missing required environment variables", zap.Strings("variables", missing))
		os.Exit(1)
	}

	if v, ok := os.LookupEnv("BOT_URL"); ok && v != "" {
		cfg.BotURL = v
	}
	cfg.DBURL = os.Getenv("DB_URL")
	cfg.MongoURL = os.Getenv("MONGO_URL")
	cfg.MongoDatabase = os.Getenv("MONGO_DATABASE")
	cfg.KafkaBrokers = os.Getenv("KAFKA_BROKERS")
	cfg.KafkaTopic = os.Getenv("KAFKA_TOPIC")
	cfg.StatusAddr = os.Getenv("STATUS_ADDR")

	return cfg
}

// UserAgent renders the User-Agent string per §4.D / §6.2.
func (c Config) UserAgent() string {
	return fmt.Sprintf("%s/%s %s", c.BotName, c.BotVersion, c.BotURL)
}
