// Package configcmder provides the config command for managing persistent
// vecshard configuration stored in the .vecshard/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent vecshard configuration.

Configuration is stored as config.toml in the .vecshard/ directory and provides
default values for command flags. CLI flags and VECSHARD_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.data_dir, storage.postgres_dsn,
  api.listen,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  embedding.api_key_env,
  chunking.token_limit, chunking.chunk_ratio, chunking.overlap_ratio, chunking.encoding,
  auth.jwt_secret, auth.default_user,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  vecshard config set <key> <value>    Set a configuration value
  vecshard config get <key>            Get a configuration value
  vecshard config list                 List all configuration values

Examples:
  vecshard config set storage.data_dir /var/lib/vecshard
  vecshard config set chunking.token_limit 4000
  vecshard config get embedding.model
  vecshard config list`

const configShortDesc string = "Manage persistent vecshard configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
