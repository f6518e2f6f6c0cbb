// Package vecshardcmder
package vecshardcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/vecshard/cmd/vecshard/auth"
	configcmder "github.com/papercomputeco/vecshard/cmd/vecshard/config"
	execcmder "github.com/papercomputeco/vecshard/cmd/vecshard/exec"
	initcmder "github.com/papercomputeco/vecshard/cmd/vecshard/init"
	servecmder "github.com/papercomputeco/vecshard/cmd/vecshard/serve"
	tokencmder "github.com/papercomputeco/vecshard/cmd/vecshard/token"
	versioncmder "github.com/papercomputeco/vecshard/cmd/version"
)

const vecshardLongDesc string = `vecshard is a sharded vector and document store.

Every operation names a shard. Each shard has its own storage and runs
its operations one at a time, while different shards run concurrently.

Run services using:
  vecshard serve                           Run the HTTP API server
  vecshard exec <shard> <op> [payload]     Run one operation locally
  vecshard config list                     Show the effective configuration
  vecshard token <user-id>                 Issue a bearer token for writes`

const vecshardShortDesc string = "vecshard - sharded vector store"

func NewVecshardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vecshard",
		Short:        vecshardShortDesc,
		Long:         vecshardLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .vecshard/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(execcmder.NewExecCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(tokencmder.NewTokenCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
