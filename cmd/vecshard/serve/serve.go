// Package servecmder provides the serve command for running the HTTP API.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/api"
	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/logger"
	"github.com/papercomputeco/vecshard/pkg/service"
)

type ServeCommander struct {
	listen     string
	debug      bool
	jsonLogs   bool
	disableMCP bool
	logFile    string
	configDir  string
	viper      *viper.Viper
	logger     *zap.Logger
}

const serveLongDesc string = `Run the vecshard HTTP API server.

Operations are dispatched with:
  POST /v1/shards/<shard>/<operation>   JSON payload in the request body

A bearer token in the Authorization header is verified when auth.jwt_secret
is set. MCP clients can connect to /mcp for the search_documents and
get_document tools.

Flags override environment variables (VECSHARD_*), which override
config.toml values.`

const serveShortDesc string = "Run the vecshard API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, append([]string{config.FlagListen}, config.ServiceFlags...))
			cmder.configDir = configDir
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddServiceFlags(cmd)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Emit logs as JSON")
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithJSON(c.jsonLogs))
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}
	defer func() { _ = c.logger.Sync() }()

	cfg := config.FromViper(c.viper)
	if err := service.LoadSecrets(cfg, c.configDir); err != nil {
		return err
	}

	svc, err := service.New(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			c.logger.Error("closing service", zap.Error(err))
		}
	}()

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, svc, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
