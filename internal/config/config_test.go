package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/pizzaurum"
stripe:
  secret_key: "sk_test_1"
  webhook_secret: "whsec_1"
relays:
  sms_url: "http://sms.local"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/pizzaurum", cfg.DB.DSN)
	assert.Equal(t, "sk_test_1", cfg.Stripe.SecretKey)
	assert.Equal(t, "http://sms.local", cfg.Relays.SMSURL)
	assert.Equal(t, "eur", cfg.Currency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_override")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sk_live_override", cfg.Stripe.SecretKey)
}

func TestLoadRejectsIncompleteStripeConfig(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/pizzaurum"
`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
