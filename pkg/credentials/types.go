package credentials

// Credentials represents the stored secrets in credentials.toml.
type Credentials struct {
	Version int               `toml:"version"`
	Secrets map[string]Secret `toml:"secrets"`
}

// Secret holds one stored secret value.
type Secret struct {
	Value string `toml:"value"`
}
