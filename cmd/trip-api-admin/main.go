// Command trip-api-admin bundles operational tasks that are awkward over the
// HTTP API: migrations, development seeding, and cache maintenance.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roamline/trip-api/config"
	redisadapter "github.com/roamline/trip-api/internal/adapters/redis"
	"github.com/roamline/trip-api/internal/bootstrap"
	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/devseed"
	"github.com/roamline/trip-api/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrateCommand,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Run migrations and seed development trips plus a dev session",
			run:         runDBSeed,
		},
		"job-stats": {
			name:        "job-stats",
			description: "Print per-status job counts for every job kind",
			run:         runJobStats,
		},
		"clear-estimates": {
			name:        "clear-estimates",
			description: "Purge cached travel estimates from the cache Redis",
			run:         runClearEstimates,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: trip-api-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-18s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func runMigrateCommand(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "migration timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, *timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "seed timeout")
	allowRemote := fs.Bool("allow-remote", false, "allow seeding a non-local database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*allowRemote && !isLocalHost(cmdCtx.Config.Postgres.Host) {
		return fmt.Errorf(
			"refusing to seed non-local database %q (pass -allow-remote to override)",
			cmdCtx.Config.Postgres.Host,
		)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, *timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeRedis(redisClient, cmdCtx.Logger)

	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}

	return devseed.Run(ctx, devseed.Deps{
		DB:       db,
		Sessions: redisadapter.NewSessionStore(redisClient),
		Logger:   cmdCtx.Logger,
	})
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func runJobStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	repo := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "KIND\tPENDING\tRUNNING\tCOMPLETED\tFAILED\n"); err != nil {
		return err
	}
	for _, kind := range []model.JobKind{model.JobKindTravelTime, model.JobKindStepSync} {
		stats, statsErr := repo.Stats(ctx, kind)
		if statsErr != nil {
			return fmt.Errorf("stats for %s: %w", kind, statsErr)
		}
		if err := writef(w, "%s\t%d\t%d\t%d\t%d\n",
			kind, stats.Pending, stats.Running, stats.Completed, stats.Failed); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runClearEstimates(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("clear-estimates", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "list matching keys without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	client, err := bootstrap.ConnectCacheRedis(cmdCtx.Config.Cache, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect cache redis: %w", err)
	}
	defer closeRedis(client, cmdCtx.Logger)

	deleted, err := purgeEstimateKeys(ctx, client, *dryRun)
	if err != nil {
		return err
	}

	verb := "deleted"
	if *dryRun {
		verb = "would delete"
	}
	cmdCtx.Logger.Info("clear estimates complete", "action", verb, "keys", deleted)
	return nil
}

func purgeEstimateKeys(ctx context.Context, client redis.UniversalClient, dryRun bool) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, "estimate:*", 100).Result()
		if err != nil {
			return total, fmt.Errorf("scan estimate keys: %w", err)
		}

		if len(keys) > 0 {
			total += len(keys)
			if !dryRun {
				if delErr := client.Del(ctx, keys...).Err(); delErr != nil {
					return total, fmt.Errorf("delete estimate keys: %w", delErr)
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		logger.Warn("db close failed", "error", err)
	}
}

func closeRedis(client redis.UniversalClient, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close failed", "error", err)
	}
}
