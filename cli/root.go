// Package cli wires the gateway's command-line entry point: configuration
// loading, service construction, the HTTP server lifecycle, and graceful
// shutdown on SIGINT/SIGTERM.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchmongo/gateway/api"
	"github.com/couchmongo/gateway/common"
	"github.com/couchmongo/gateway/config"
	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/jsruntime"
	"github.com/couchmongo/gateway/metrics"
	"github.com/couchmongo/gateway/upstream"
	"github.com/couchmongo/gateway/views"
)

// cfgFile holds the path to the configuration file specified via the
// --config flag.
var cfgFile string

// RootCmd is the gateway's single command: load configuration, start the
// HTTP server, and serve until interrupted.
var RootCmd = &cobra.Command{
	Use:   "couchmongo-gateway",
	Short: "a CouchDB-compatible HTTP gateway backed by MongoDB",
	Long: `couchmongo-gateway serves CouchDB's document and view HTTP API
against a MongoDB database: CRUD and _bulk_docs requests translate
directly to MongoDB operations, CouchDB views translate to declarative
aggregation pipelines, and _update functions run in a sandboxed
JavaScript runtime. Databases can optionally read-through or forward
writes to a real CouchDB instance instead.`,
	RunE: runServer,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "path to the gateway's TOML configuration file")
}

// Execute runs the root command, returning any error from server setup
// or from a failed graceful shutdown.
func Execute() error {
	return RootCmd.Execute()
}

// runServer loads configuration, constructs every collaborator the
// gateway's HTTP handlers depend on, starts the server in the
// background, and blocks until an interrupt signal triggers a graceful
// shutdown.
func runServer(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := common.NewLogger(common.LoggerConfig{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Debug:  settings.Debug,
	})
	common.Logger = logger

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	mongoDB, disconnect, err := dbiface.Connect(startCtx, settings.MongoDBConnectString, settings.MongoDBDatabase, 10*time.Second)
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := disconnect(ctx); err != nil {
			logger.WithError(err).Warn("error disconnecting from mongodb")
		}
	}()

	viewLibrary, loadErrs := views.Load(settings.ViewFolder)
	for _, e := range loadErrs {
		logger.WithError(e).Warn("skipping invalid view definition")
	}

	var policy *upstream.Policy
	var upstreamClient *upstream.Client
	if settings.CouchDBSettings != nil {
		cs := settings.CouchDBSettings
		policy = upstream.NewPolicy(cs.ReadThrough, cs.ReadOnly, cs.ReadThroughDatabases, cs.ReadOnlyDatabases, cs.Mappings)
		upstreamClient = upstream.NewClient(cs.URL, cs.Username, cs.Password, 30*time.Second)

		probe, err := upstream.NewProbe(cs.URL, cs.Username, cs.Password)
		if err != nil {
			return fmt.Errorf("configuring couchdb probe: %w", err)
		}
		if err := probe.Check(startCtx, 10*time.Second); err != nil {
			logger.WithError(err).Warn("upstream couchdb probe failed at startup")
		}
	} else {
		policy = upstream.NewPolicy(false, false, nil, nil, nil)
	}

	sandbox := jsruntime.New(time.Second, logger)
	collectors := metrics.New("couchmongo_gateway")

	gw := &api.Gateway{
		DB:            dbiface.NewMongo(mongoDB),
		Views:         viewLibrary,
		Policy:        policy,
		Upstream:      upstreamClient,
		Sandbox:       sandbox,
		UpdatesFolder: settings.UpdatesFolder,
		Metrics:       collectors,
		Log:           logger,
	}

	e := api.NewEchoServer(api.ServerConfig{
		Debug:     settings.Debug,
		BodyLimit: settings.BodyLimit,
		RateLimit: settings.RateLimit,
	})
	gw.RegisterRoutes(e)

	go func() {
		logger.WithField("address", settings.ListenAddress).Info("starting gateway")
		if err := e.Start(settings.ListenAddress); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("gateway server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}
