// Package credentials stores secrets that should not live in config.toml:
// embedding provider API keys and the bearer token signing secret.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/vecshard/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// OpenAI is the API key for the openai embedding provider.
	OpenAI = "openai"

	// JWT is the HMAC secret bearer tokens are signed with.
	JWT = "jwt"
)

// secretEnvVars maps secret names to the environment variable that
// overrides the stored value.
var secretEnvVars = map[string]string{
	OpenAI: "OPENAI_API_KEY",
	JWT:    "VECSHARD_AUTH_JWT_SECRET",
}

// Manager manages reading and writing credentials.toml in the .vecshard/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .vecshard/ directory; otherwise the standard dotdir resolution applies.
// When no .vecshard/ directory is found, one is created at ~/.vecshard/.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		target = filepath.Join(home, ".vecshard")
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("creating vecshard dir: %w", err)
		}
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Lookup returns the stored secret called name without creating any
// directory. Missing directories, files and secrets all yield "".
func Lookup(override, name string) (string, error) {
	target, err := dotdir.NewManager().Target(override)
	if err != nil || target == "" {
		return "", err
	}

	mgr := &Manager{targetPath: filepath.Join(target, credentialsFile)}
	return mgr.Get(name)
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Secrets: make(map[string]Secret),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Secrets == nil {
		creds.Secrets = make(map[string]Secret)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// Set stores a secret under name.
func (m *Manager) Set(name, value string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Secrets[name] = Secret{Value: value}

	return m.Save(creds)
}

// Get returns the stored secret called name, or "" if none is stored.
func (m *Manager) Get(name string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Secrets[name].Value, nil
}

// Remove deletes the stored secret called name.
func (m *Manager) Remove(name string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Secrets, name)

	return m.Save(creds)
}

// List returns the names of stored secrets.
func (m *Manager) List() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Secrets))
	for name := range creds.Secrets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// EnvVarFor returns the environment variable that overrides the stored
// secret called name, or "" for unknown names.
func EnvVarFor(name string) string {
	return secretEnvVars[name]
}

// SupportedSecrets returns the names of secrets that can be stored.
func SupportedSecrets() []string {
	return []string{JWT, OpenAI}
}

// IsSupported returns true if name can be stored.
func IsSupported(name string) bool {
	return slices.Contains(SupportedSecrets(), name)
}
