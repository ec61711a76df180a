package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maskcloud/internal/server"
	"github.com/matzehuels/maskcloud/pkg/buildinfo"
	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
	"github.com/matzehuels/maskcloud/pkg/store"
)

// defaultRedisPrefix namespaces server keys in a shared Redis.
const defaultRedisPrefix = appName + ":"

// serveCommand creates the serve command for the HTTP upload service.
func (c *CLI) serveCommand() *cobra.Command {
	sc := c.Config.Server
	if sc.Addr == "" {
		sc.Addr = server.DefaultAddr
	}
	if sc.MaxUploadMB == 0 {
		sc.MaxUploadMB = server.DefaultMaxUploadMB
	}
	if sc.RedisPrefix == "" {
		sc.RedisPrefix = defaultRedisPrefix
	}
	timeout, _ := sc.timeout()
	if timeout == 0 {
		timeout = server.DefaultTimeout
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the word-cloud upload form and API over HTTP",
		Long: `Serve the word-cloud upload form and API over HTTP.

POST /generate accepts a multipart form with a mask image and a text and
responds with the PNG. Generated images stay retrievable under
/results/{id} and every request leaves a run record under /runs/{id}.

Without --redis-addr results are cached in memory; without --mongo-uri run
records are kept in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), sc, timeout)
		},
	}

	cmd.Flags().StringVar(&sc.Addr, "addr", sc.Addr, "listen address")
	cmd.Flags().IntVar(&sc.MaxUploadMB, "max-upload-mb", sc.MaxUploadMB, "maximum request size in MB")
	cmd.Flags().DurationVar(&timeout, "timeout", timeout, "per-request timeout")
	cmd.Flags().StringVar(&sc.RedisAddr, "redis-addr", sc.RedisAddr, "Redis address for the result cache")
	cmd.Flags().StringVar(&sc.RedisPrefix, "redis-prefix", sc.RedisPrefix, "key prefix in Redis")
	cmd.Flags().IntVar(&sc.RedisDB, "redis-db", sc.RedisDB, "Redis database number")
	cmd.Flags().StringVar(&sc.MongoURI, "mongo-uri", sc.MongoURI, "MongoDB URI for the run history")
	cmd.Flags().StringVar(&sc.MongoDB, "mongo-db", sc.MongoDB, "MongoDB database name")

	return cmd
}

// runServe wires the cache and store backends and serves until ctx is done.
func (c *CLI) runServe(ctx context.Context, sc ServerConfig, timeout time.Duration) error {
	ch, keyer, err := c.serverCache(ctx, sc)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(ch, keyer, c.Logger)
	defer runner.Close()

	st, err := c.serverStore(ctx, sc)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	srv := server.New(server.Config{
		Addr:        sc.Addr,
		MaxUploadMB: sc.MaxUploadMB,
		Timeout:     timeout,
		Defaults:    c.Config.Defaults,
	}, runner, st, c.Logger)

	printSuccess("maskcloud %s", buildinfo.Short())
	printKeyValue("listen", StyleLink.Render(listenURL(sc.Addr)))
	printKeyValue("cache", cacheBackend(sc))
	printKeyValue("runs", storeBackend(sc))
	printNewline()

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serverCache returns Redis when configured, otherwise an in-memory cache.
func (c *CLI) serverCache(ctx context.Context, sc ServerConfig) (cache.Cache, cache.Keyer, error) {
	if sc.RedisAddr == "" {
		return cache.NewMemoryCache(), nil, nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Addr:     sc.RedisAddr,
		Password: sc.RedisPassword,
		DB:       sc.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	c.Logger.Debug("connected to redis", "addr", sc.RedisAddr, "prefix", sc.RedisPrefix)
	return rc, cache.NewScopedKeyer(nil, sc.RedisPrefix), nil
}

// serverStore returns MongoDB when configured, otherwise an in-memory store.
func (c *CLI) serverStore(ctx context.Context, sc ServerConfig) (store.Store, error) {
	if sc.MongoURI == "" {
		return store.NewMemoryStore(0), nil
	}
	ms, err := store.NewMongoStore(ctx, sc.MongoURI, sc.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	c.Logger.Debug("connected to mongo", "db", sc.MongoDB)
	return ms, nil
}

func listenURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func cacheBackend(sc ServerConfig) string {
	if sc.RedisAddr == "" {
		return "memory"
	}
	return "redis " + sc.RedisAddr
}

// storeBackend names the run store without the URI, which may carry
// credentials.
func storeBackend(sc ServerConfig) string {
	switch {
	case sc.MongoURI == "":
		return "memory"
	case sc.MongoDB == "":
		return "mongodb " + store.DefaultDatabase
	}
	return "mongodb " + sc.MongoDB
}
