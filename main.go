package main

import (
	"context"
	"drivechat/app/api"
	"drivechat/app/client/llm"
	"drivechat/app/client/mqtt"
	"drivechat/app/client/speechkit"
	"drivechat/app/config"
	"drivechat/app/service/actuation"
	"drivechat/app/service/dialogue"
	"drivechat/app/service/journal"
	"drivechat/app/service/mcptool"
	"drivechat/app/service/session"
	"drivechat/app/service/transcribe"
	"drivechat/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "drivechat",
	Short: "Conversational control for the robot car",
	Long: `Chat with the robot car in natural language.

The model decides when a message is a motion command, the command is
published to the car over MQTT and the outcome is narrated back.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the MCP server and the session reaper",
	RunE:  runServe,
}

func main() {
	mylog.Preinit()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	rootCmd.AddCommand(serveCmd, sendCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the config and provides it together with the app context
func bootstrap(ctx context.Context) (*do.Injector, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err = mylog.Init(cfg); err != nil {
		return nil, err
	}

	di := do.New()
	do.ProvideValue(di, ctx)
	do.ProvideValue(di, cfg)

	do.Provide(di, mqtt.NewClient)
	do.Provide(di, journal.New)
	do.Provide(di, journal.NewQueue)
	do.Provide(di, actuation.New)

	return di, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	appCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	di, err := bootstrap(appCtx)
	if err != nil {
		slog.Error("Startup failed", slog.Any("error", err))
		return err
	}
	defer di.Shutdown()
	defer slog.Info("Waiting for services to finish...")

	do.Provide(di, llm.New)
	do.Provide(di, session.New)
	do.Provide(di, dialogue.New)
	do.Provide(di, speechkit.NewClient)
	do.Provide(di, transcribe.New)
	do.Provide(di, mcptool.New)
	do.Provide(di, api.New)

	server, err := do.Invoke[*api.Server](di)
	if err != nil {
		slog.Error("Startup failed", slog.Any("error", err))
		return err
	}

	sessions := do.MustInvoke[*session.Store](di)
	queue := do.MustInvoke[*journal.Queue](di)
	mcpServer := do.MustInvoke[*mcptool.Service](di)

	slog.Info("Service started")

	g, gctx := errgroup.WithContext(appCtx)

	g.Go(func() error {
		sessions.RunReaper(gctx)
		return nil
	})
	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return mcpServer.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	if err = g.Wait(); err != nil {
		slog.Error("Service failed", slog.Any("error", err))
		return err
	}

	slog.Info("Shutting down...")

	return nil
}
