// Command crawler runs a single-process, single-worker archival crawl:
// seed URLs, drain the frontier under the robots gate and politeness
// rules, and archive every response to WARC segments.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/temoto/robotstxt"
	"github.com/thkoch2001/lara/internal/config"
	"github.com/thkoch2001/lara/internal/contentmirror"
	"github.com/thkoch2001/lara/internal/crawler"
	"github.com/thkoch2001/lara/internal/fetchevents"
	"github.com/thkoch2001/lara/internal/fetcher"
	"github.com/thkoch2001/lara/internal/frontier"
	"github.com/thkoch2001/lara/internal/linkextract"
	"github.com/thkoch2001/lara/internal/robotscache"
	"github.com/thkoch2001/lara/internal/robotsgate"
	"github.com/thkoch2001/lara/internal/signalhandler"
	"github.com/thkoch2001/lara/internal/statusapi"
	"github.com/thkoch2001/lara/internal/urlstore"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg := config.Load(logger)
	logger.Info("configuration loaded",
		zap.String("bot_name", cfg.BotName),
		zap.String("bot_url", cfg.BotURL),
		zap.String("archive_dir", cfg.ArchiveDir),
		zap.String("from", cfg.From),
		zap.Bool("url_store", cfg.DBURL != ""),
		zap.Bool("status_api", cfg.StatusAddr != ""),
	)

	if info, err := os.Stat(cfg.ArchiveDir); err != nil || !info.IsDir() {
		logger.Error("archive dir does not exist or is not a directory", zap.String("archive_dir", cfg.ArchiveDir))
		os.Exit(1)
	}

	seeds, err := parseSeeds(os.Args[1:])
	if err != nil {
		logger.Error("invalid seed url", zap.Error(err))
		os.Exit(1)
	}
	if len(seeds) == 0 {
		logger.Error("no seed urls given; pass one or more absolute URLs as arguments")
		os.Exit(1)
	}

	f, err := fetcher.New(fetcher.Config{
		BotName:    cfg.BotName,
		BotVersion: cfg.BotVersion,
		BotURL:     cfg.BotURL,
		From:       cfg.From,
		ArchiveDir: cfg.ArchiveDir,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize fetcher", zap.Error(err))
		os.Exit(1)
	}
	defer f.Close()

	fr := frontier.New()
	cache := robotscache.New[*robotstxt.RobotsData](logger)
	gate := robotsgate.New(cache, f, cfg.BotName, logger)
	registry := linkextract.NewRegistry(logger)

	ctx := context.Background()
	sinks := wireSinks(ctx, cfg, logger)
	defer closeSinks(ctx, sinks)

	if cfg.StatusAddr != "" {
		api := statusapi.New(fr, f, gate, registry, logger)
		go func() {
			if err := api.Run(cfg.StatusAddr); err != nil {
				logger.Warn("status API stopped", zap.Error(err))
			}
		}()
	}

	handler := signalhandler.New(logger)

	loop := crawler.New(fr, f, gate, registry, sinks, logger)
	loop.Seed(seeds)
	loop.Run(ctx, handler)

	logger.Info("crawl loop finished")
}

func parseSeeds(args []string) ([]*url.URL, error) {
	seeds := make([]*url.URL, 0, len(args))
	for _, raw := range args {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing seed %q: %w", raw, err)
		}
		seeds = append(seeds, u)
	}
	return seeds, nil
}

func wireSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) crawler.Sinks {
	var sinks crawler.Sinks

	if cfg.DBURL != "" {
		store, err := urlstore.New(ctx, cfg.DBURL, logger)
		if err != nil {
			logger.Warn("url store disabled: connection failed", zap.Error(err))
		} else {
			sinks.URLStore = store
		}
	}

	if cfg.MongoURL != "" && cfg.MongoDatabase != "" {
		mirror, err := contentmirror.New(ctx, cfg.MongoURL, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Warn("content mirror disabled: connection failed", zap.Error(err))
		} else {
			sinks.Mirror = mirror
		}
	}

	if cfg.KafkaBrokers != "" && cfg.KafkaTopic != "" {
		sinks.Publisher = fetchevents.New(fetchevents.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, logger)
	}

	return sinks
}

func closeSinks(ctx context.Context, sinks crawler.Sinks) {
	if sinks.URLStore != nil {
		sinks.URLStore.Close()
	}
	if sinks.Mirror != nil {
		sinks.Mirror.Close(ctx)
	}
	if sinks.Publisher != nil {
		sinks.Publisher.Close()
	}
}
