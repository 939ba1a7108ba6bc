// Command reload asks running geo api instances to rebuild their
// collections. With -upload it first stores the snapshot files of a local
// directory in postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	reason := flag.String("reason", "manual", "reason recorded with the refresh")
	uploadDir := flag.String("upload", "", "directory whose snapshot files are stored in postgres first")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *uploadDir != "" {
		if err := upload(ctx, cfg, *uploadDir); err != nil {
			slog.Error("upload failed", "error", err)
			os.Exit(1)
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DatasetRefresh)
	defer producer.Close()

	req := refresh.Request{
		Reason:      *reason,
		RequestedBy: requester(),
		RequestedAt: time.Now().UTC(),
	}
	if err := producer.Publish(ctx, kafka.Event{Key: req.Reason, Value: req}); err != nil {
		slog.Error("failed to publish refresh request", "error", err)
		os.Exit(1)
	}
	slog.Info("refresh requested", "topic", cfg.Kafka.Topics.DatasetRefresh, "reason", req.Reason)
}

// upload stores every configured snapshot file found in dir in one
// transaction.
func upload(ctx context.Context, cfg *config.Config, dir string) error {
	payloads := make(map[string][]byte, len(cfg.Dataset.Files))
	for kind, name := range cfg.Dataset.Files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				slog.Warn("snapshot file missing, skipped", "kind", kind, "file", name)
				continue
			}
			return fmt.Errorf("reading %s: %w", name, err)
		}
		payloads[name] = data
	}
	if len(payloads) == 0 {
		return fmt.Errorf("no snapshot files found in %s", dir)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := pg.PutSnapshots(ctx, payloads); err != nil {
		return err
	}
	slog.Info("snapshots uploaded", "count", len(payloads), "table", cfg.Postgres.Table)
	return nil
}

func requester() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	host, _ := os.Hostname()
	return host
}
