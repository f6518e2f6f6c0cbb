// Package authcmder provides the auth command for storing secrets.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/vecshard/pkg/credentials"
)

const authLongDesc string = `Store secrets outside config.toml.

Secrets are stored in credentials.toml (mode 0600) in the .vecshard/
directory and read by "vecshard serve" and "vecshard exec" at startup.
An environment variable, when set, takes precedence over the stored value.

Secrets:
  openai    API key for the openai embedding provider (OPENAI_API_KEY)
  jwt       HMAC secret bearer tokens are signed with (VECSHARD_AUTH_JWT_SECRET)

Examples:
  vecshard auth openai              Prompt for the OpenAI API key
  echo $SECRET | vecshard auth jwt  Pipe the secret from stdin
  vecshard auth --list              List stored secrets
  vecshard auth --remove openai     Remove the stored OpenAI API key`

const authShortDesc string = "Store secrets for embedding providers and token signing"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [secret]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			w := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(w, configDir)
			case removeFlag != "":
				return runRemove(w, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("secret argument required\n\nSupported secrets: %s",
						strings.Join(credentials.SupportedSecrets(), ", "))
				}
				return runAuth(w, cmd.InOrStdin(), args[0], configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedSecrets(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored secrets")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove a stored secret")

	return cmd
}

func runAuth(w io.Writer, in io.Reader, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	if !credentials.IsSupported(name) {
		return fmt.Errorf("unsupported secret: %q\n\nSupported secrets: %s",
			name, strings.Join(credentials.SupportedSecrets(), ", "))
	}

	value, err := readSecret(w, in, name)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("secret cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Set(name, value); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Stored %s secret in %s (overridden by %s)\n",
		name, mgr.GetTarget(), credentials.EnvVarFor(name))
	return err
}

func runList(w io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	names, err := mgr.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintln(w, "No stored secrets.")
		fmt.Fprintf(w, "Supported secrets: %s\n", strings.Join(credentials.SupportedSecrets(), ", "))
		return nil
	}

	for _, name := range names {
		if envVar := credentials.EnvVarFor(name); envVar != "" {
			fmt.Fprintf(w, "%s -> %s\n", name, envVar)
		} else {
			fmt.Fprintln(w, name)
		}
	}

	return nil
}

func runRemove(w io.Writer, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Remove(name); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Removed %s secret.\n", name)
	return err
}

// readSecret prompts with hidden input when in is a terminal and otherwise
// reads the first line.
func readSecret(w io.Writer, in io.Reader, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(w, "Enter %s secret (%s): ", name, credentials.EnvVarFor(name))

		value, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(value), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
