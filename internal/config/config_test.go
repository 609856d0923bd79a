package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		LDAP: LDAPConfig{
			URL:              "ldap://localhost:389",
			BaseDN:           "ou=users,dc=example,dc=com",
			Filter:           "(uid=%login)",
			ReplyTextAttr:    "mailReplyText",
			DeliveryModeAttr: "deliveryMode",
		},
		Storage: StorageConfig{Type: "none"},
	}
}

func TestLoadDefaults(t *testing.T) {
	// Shield the test from whatever the surrounding environment sets.
	for _, key := range []string{
		"HTTP_ADDR", "HTTP_BASE_PATH", "LDAP_FILTER", "LDAP_REPLYTEXT_ATTR",
		"LDAP_DELIVERYMODE_ATTR", "LDAP_SEARCH_TIME_LIMIT", "AUTH_BASIC",
		"AUTH_BEARER", "STORAGE_TYPE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "/api", cfg.HTTP.BasePath)
	assert.Equal(t, "(uid=%login)", cfg.LDAP.Filter)
	assert.Equal(t, "mailReplyText", cfg.LDAP.ReplyTextAttr)
	assert.Equal(t, "deliveryMode", cfg.LDAP.DeliveryModeAttr)
	assert.Equal(t, 10, cfg.LDAP.SearchTimeLimit)
	assert.True(t, cfg.Auth.EnableBasic)
	assert.False(t, cfg.Auth.EnableBearer)
	assert.Equal(t, "none", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LDAP_URL", "ldaps://dir.example.com:636")
	t.Setenv("LDAP_BASE_DN", "dc=example,dc=com")
	t.Setenv("LDAP_SEARCH_TIME_LIMIT", "30")
	t.Setenv("LDAP_REQUIRE_TLS", "true")
	t.Setenv("STORAGE_TYPE", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ldaps://dir.example.com:636", cfg.LDAP.URL)
	assert.Equal(t, "dc=example,dc=com", cfg.LDAP.BaseDN)
	assert.Equal(t, 30, cfg.LDAP.SearchTimeLimit)
	assert.True(t, cfg.LDAP.RequireTLS)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLoadIgnoresBadNumericValues(t *testing.T) {
	t.Setenv("LDAP_SEARCH_TIME_LIMIT", "not-a-number")
	t.Setenv("LDAP_DIAL_TIMEOUT", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.LDAP.SearchTimeLimit)
	assert.Equal(t, "10s", cfg.LDAP.DialTimeout.String())
}

func TestValidateReportsAllMissingFieldsAtOnce(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Type: "none"}}

	err := cfg.Validate()
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)

	assert.ElementsMatch(t, []string{
		"ldap.url",
		"ldap.base_dn",
		"ldap.filter",
		"ldap.replytext_attr",
		"ldap.deliverymode_attr",
	}, ce.Missing)
}

func TestValidateLowercasesAttributeNames(t *testing.T) {
	cfg := validConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mailreplytext", cfg.LDAP.ReplyTextAttr)
	assert.Equal(t, "deliverymode", cfg.LDAP.DeliveryModeAttr)
}

func TestValidateBearerNeedsJWKS(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.EnableBearer = true

	err := cfg.Validate()
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Missing, "auth.jwks_url")

	cfg.Auth.JWKSURL = "https://idp.example.com/jwks.json"
	require.NoError(t, cfg.Validate())
}

func TestValidateStorageTypes(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = StorageConfig{Type: "postgres"}
	err := cfg.Validate()
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Missing, "storage.pg_url")

	cfg = validConfig()
	cfg.Storage = StorageConfig{Type: "mysql"}
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage = StorageConfig{Type: "sqlite", SQLitePath: "/tmp/audit.db"}
	require.NoError(t, cfg.Validate())
}
