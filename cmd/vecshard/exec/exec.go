// Package execcmder provides the exec command for running a single shard
// operation against local storage.
package execcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/logger"
	"github.com/papercomputeco/vecshard/pkg/service"
)

type execCommander struct {
	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

const execLongDesc string = `Run one operation against a shard and print the JSON response.

The payload is a JSON document. Pass "-" to read it from stdin, or omit it
for operations that take none (deleteAll).

Shards are stored under storage.data_dir, one SQLite file per shard. Without
a data dir the store is in-memory and discarded when the command exits.

Examples:
  vecshard exec tenant-a storeDocument '{"namespace":"kb","content":"hello"}' --data-dir ./shards
  vecshard exec tenant-a searchDocuments '{"query":"hello","topN":3}' --data-dir ./shards
  echo '{"vector":[0.1,0.2],"topN":5}' | vecshard exec tenant-a search - --data-dir ./shards`

const execShortDesc string = "Run one shard operation locally"

func NewExecCmd() *cobra.Command {
	cmder := &execCommander{}

	cmd := &cobra.Command{
		Use:   "exec <shard> <operation> [payload]",
		Short: execShortDesc,
		Long:  execLongDesc,
		Args:  cobra.RangeArgs(2, 3),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, config.ServiceFlags)
			cmder.configDir = configDir
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			payload, err := readPayload(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return cmder.run(cmd, args[0], args[1], payload)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return dispatch.Operations, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	config.AddServiceFlags(cmd)

	return cmd
}

func (c *execCommander) run(cmd *cobra.Command, key, operation string, payload json.RawMessage) error {
	// stdout is reserved for the response
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithWriter(cmd.ErrOrStderr()))
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

	resp, err := svc.Execute(cmd.Context(), key, operation, payload)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func readPayload(args []string, stdin io.Reader) (json.RawMessage, error) {
	if len(args) < 3 {
		return nil, nil
	}

	raw := []byte(args[2])
	if args[2] == "-" {
		var err error
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading payload from stdin: %w", err)
		}
	}

	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}

