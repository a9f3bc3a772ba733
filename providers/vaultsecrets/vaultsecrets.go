// Package vaultsecrets implements phiaudit.SecretSource on top of the
// HashiCorp Vault KV v2 engine. Vault is also the distribution channel for
// multi-instance deployments: every instance reads the same secret path, so
// rotation coordination reduces to writing a new version in Vault and
// restarting or re-activating instances.
package vaultsecrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/phiaudit"
)

// Source reads the anonymization secret from a Vault KV v2 path.
type Source struct {
	client *api.Client
	mount  string
	path   string
	field  string
}

// Option configures the Source.
type Option func(*Source)

// WithMount overrides the KV mount point. Default: "secret".
func WithMount(mount string) Option {
	return func(s *Source) { s.mount = mount }
}

// WithField overrides the key holding the secret inside the KV entry.
// Default: "material".
func WithField(field string) Option {
	return func(s *Source) { s.field = field }
}

// New creates a Source for the given KV path. Address, namespace and
// AppRole credentials come from the standard VAULT_* environment variables.
func New(path string, opts ...Option) (*Source, error) {
	config := api.DefaultConfig()
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		resp, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to login with AppRole: %w", err)
		}
		if resp.Auth == nil {
			return nil, fmt.Errorf("no auth info returned from AppRole login")
		}
		client.SetToken(resp.Auth.ClientToken)
	}

	s := &Source{
		client: client,
		mount:  "secret",
		path:   path,
		field:  "material",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements phiaudit.SecretSource.
func (s *Source) Name() string {
	return fmt.Sprintf("vault:%s/%s#%s", s.mount, s.path, s.field)
}

// Secret implements phiaudit.SecretSource. A missing KV entry or missing
// field maps to the "not configured" error class, distinct from a present
// but malformed value.
func (s *Source) Secret(ctx context.Context) ([]byte, error) {
	kv := s.client.KVv2(s.mount)
	entry, err := kv.Get(ctx, s.path)
	if err != nil {
		if err == api.ErrSecretNotFound {
			return nil, phiaudit.NewSecretNotConfiguredError(s.Name())
		}
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}

	raw, ok := entry.Data[s.field]
	if !ok {
		return nil, phiaudit.NewSecretNotConfiguredError(s.Name())
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("%w: Vault field %q is not a non-empty string", phiaudit.ErrInvalidConfiguration, s.field)
	}

	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return []byte(value), nil
}
