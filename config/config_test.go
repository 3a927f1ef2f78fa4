package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mongodb_connect_string = "mongodb://localhost:27017"
mongodb_database = "fake_couch"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", settings.ListenAddress)
	assert.Equal(t, "10M", settings.BodyLimit)
	assert.Zero(t, settings.RateLimit)
	assert.Equal(t, "Compact", settings.LogFormat)
	assert.Equal(t, "Debug", settings.LogLevel)
	assert.False(t, settings.Debug)
}

func TestLoadMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `debug = true`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadCouchDBSettings(t *testing.T) {
	path := writeConfig(t, `
mongodb_connect_string = "mongodb://localhost:27017"
mongodb_database = "fake_couch"

[couchdb_settings]
url = "http://localhost:5984"
read_through = true
read_through_databases = ["legacy"]

[couchdb_settings.mappings]
fake_couch = "real_couch"
`)

	settings, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, settings.CouchDBSettings)
	assert.True(t, settings.CouchDBSettings.ReadThrough)
	assert.Equal(t, []string{"legacy"}, settings.CouchDBSettings.ReadThroughDatabases)
	assert.Equal(t, "real_couch", settings.CouchDBSettings.Mappings["fake_couch"])
}
