package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/canvas-sync/internal/config"
	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/canvas"
	"github.com/Sternrassler/canvas-sync/pkg/client"
	"github.com/Sternrassler/canvas-sync/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	config  *config.Configuration
	logger  zerolog.Logger
	session *canvas.Session
	redis   *redis.Client
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "canvas-sync",
		Short:         "Canvas LMS client for fetching rosters and submissions and syncing grades.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context(), configFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (default ./canvas-sync.yml)")

	rootCmd.AddCommand(
		newWhoamiCmd(a),
		newRosterCmd(a),
		newSubmissionsCmd(a),
		newSyncCmd(a),
		newForgetCmd(a),
	)
	return rootCmd
}

func (a *app) setup(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	a.config = cfg

	logging.Setup(cfg.LoggingConfig())
	a.logger = logging.NewLogger("canvas-sync")

	token, err := cfg.Authenticator()
	if err != nil {
		return err
	}

	c, err := client.New(cfg.ClientConfig(token), logging.NewLogger("client"))
	if err != nil {
		return err
	}

	var store cache.SnapshotStore = cache.FileStore{}
	if cfg.Snapshot.Store == config.StoreRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr(), err)
		}
		a.logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")
		store = cache.NewRedisStore(a.redis, cfg.Snapshot.TTL)
	}

	a.session, err = canvas.NewSession(c, canvas.Config{
		Pagination: cfg.PaginationConfig(),
		Store:      store,
	}, logging.NewLogger("canvas"))
	return err
}

// snapshotLocation derives a location for key in the configured store.
func (a *app) snapshotLocation(key cache.SnapshotKey) string {
	if a.config.Snapshot.Store == config.StoreRedis {
		return key.String()
	}
	return key.FileName()
}

// openCourse opens a course on the authenticated user's dashboard.
func (a *app) openCourse(ctx context.Context, courseID int64) (*canvas.Course, error) {
	dash, err := a.session.Dashboard(ctx, 0)
	if err != nil {
		return nil, err
	}
	return dash.OpenCourse(courseID)
}
