// Package tokencmder provides the token command for issuing bearer tokens.
package tokencmder

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/service"
)

type tokenCommander struct {
	jwtSecret string
	username  string
	ttl       time.Duration
	configDir string
	viper     *viper.Viper
}

const tokenLongDesc string = `Issue a bearer token for a user.

The token is signed with auth.jwt_secret, read from --jwt-secret,
VECSHARD_AUTH_JWT_SECRET, config.toml or the secret stored with
"vecshard auth jwt". Send it as "Authorization: Bearer <token>" to run
write operations against "vecshard serve".

Examples:
  vecshard token u-42 --username ada
  vecshard token u-42 --ttl 1h`

const tokenShortDesc string = "Issue a bearer token for a user"

const defaultTTL = 24 * time.Hour

func NewTokenCmd() *cobra.Command {
	cmder := &tokenCommander{}

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: tokenShortDesc,
		Long:  tokenLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagJWTSecret})
			cmder.configDir = configDir
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagJWTSecret, &cmder.jwtSecret)
	cmd.Flags().StringVar(&cmder.username, "username", "", "Username claim (defaults to the user id)")
	cmd.Flags().DurationVar(&cmder.ttl, "ttl", defaultTTL, "Token lifetime")

	return cmd
}

func (c *tokenCommander) run(cmd *cobra.Command, userID string) error {
	if c.ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	cfg := config.FromViper(c.viper)
	if err := service.LoadSecrets(cfg, c.configDir); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New(`no jwt secret configured: set auth.jwt_secret or run "vecshard auth jwt"`)
	}

	gateway, err := auth.NewJWTGateway(cfg.Auth.JWTSecret, nil)
	if err != nil {
		return err
	}

	username := c.username
	if username == "" {
		username = userID
	}

	token, err := gateway.IssueToken(auth.User{ID: userID, Username: username}, c.ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
