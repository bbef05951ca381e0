package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/chat"
	"github.com/playperu/expedition/internal/compositor"
	"github.com/playperu/expedition/internal/config"
	"github.com/playperu/expedition/internal/database"
	"github.com/playperu/expedition/internal/gallery"
	"github.com/playperu/expedition/internal/handler/health"
	"github.com/playperu/expedition/internal/imagecache"
	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/mapsync"
	"github.com/playperu/expedition/internal/migrations"
	"github.com/playperu/expedition/internal/objectstore"
	"github.com/playperu/expedition/internal/party"
	"github.com/playperu/expedition/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)
	store := server.NewDocStore(db)

	checks := map[string]health.Checker{"sqlite": store}

	// --- World layout ---
	world := atlas.Default()
	if cfg.AtlasPath != "" {
		if world, err = atlas.Load(cfg.AtlasPath); err != nil {
			return fmt.Errorf("loading atlas: %w", err)
		}
	}

	// --- Object storage ---
	objects, assets, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening object storage: %w", err)
	}
	logger.Info("object storage ready", "driver", cfg.Storage.Driver)

	// --- Image cache ---
	var cache imagecache.Cache = imagecache.NewMemory(cfg.ImageCacheTTL)
	if cfg.Redis.URL != "" {
		rdb, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		cache = imagecache.NewRedis(rdb, cfg.ImageCacheTTL)
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis")
	}

	// --- Chat ---
	var threads chat.Client = chat.NewLocal(logger)
	if cfg.Discord.Token != "" {
		d, err := chat.NewDiscord(chat.DiscordConfig{
			Token:     cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
			GuildID:   cfg.Discord.GuildID,
			APIURL:    cfg.Discord.APIURL,
		})
		if err != nil {
			return fmt.Errorf("configuring discord: %w", err)
		}
		threads = d
	}

	// --- Domain ---
	comp, err := compositor.New(compositor.NewObjectAssets(objects), world, logger)
	if err != nil {
		return fmt.Errorf("building compositor: %w", err)
	}
	maps := mapsync.New(store, world, logger)
	images := gallery.New(comp, maps, objects, cache, logger)
	broker := server.NewBroker()

	parties := party.NewService(party.Deps{
		Repo:       store,
		Characters: store,
		Inventory:  inventory.NewCoordinator(store, store, world.Items, logger),
		Catalog:    store,
		Map:        maps,
		Threads:    threads,
		Images:     images,
		Events:     broker,
		Settlement: world.SettlementFor,
		RegionOf:   func(sq string) string { return world.Square(sq).Region },
	}, cfg.PartyOpenTTL, logger)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, store); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Parties:    parties,
		Gallery:    images,
		Sessions:   store,
		Broker:     broker,
		Health:     checks,
		Assets:     assets,
		AssetsPath: cfg.Storage.PublicURL,
		Production: cfg.Production(),
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// openStorage returns the configured object store and, for the filesystem
// driver, the handler that serves it.
func openStorage(cfg *config.Config) (objectstore.Store, http.Handler, error) {
	if cfg.Storage.Driver == "s3" {
		s, err := objectstore.NewS3(objectstore.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		return s, nil, err
	}
	fs, err := objectstore.NewFS(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		return nil, nil, err
	}
	return fs, fs.Handler(), nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
