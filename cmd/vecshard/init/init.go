// Package initcmder provides the init command for initializing a local
// .vecshard directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/dotdir"
	"github.com/papercomputeco/vecshard/pkg/utils"
)

const remoteConfigTimeout = 30 * time.Second

const initLongDesc string = `Initialize a new .vecshard/ directory in the current working directory.

Creates a local .vecshard/ directory that takes precedence over ~/.vecshard/
and writes a config.toml into it. The --preset flag selects the embedding
setup to write, or names an http(s) URL to fetch a config.toml from.

Presets:
  ollama     local Ollama embeddings (default)
  openai     OpenAI embeddings, key read from OPENAI_API_KEY
  offline    deterministic hash embeddings, no network needed

Examples:
  vecshard init
  vecshard init --preset offline
  vecshard init --preset https://example.com/vecshard.toml`

const initShortDesc string = "Initialize a local .vecshard/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), configDir)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Embedding preset name or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer, configDir string) error {
	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Init(configDir)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Initialized .vecshard directory: %s\n", cfger.Dir())
	return err
}

func (c *initCommander) resolveConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchRemoteConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, remoteConfigTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
