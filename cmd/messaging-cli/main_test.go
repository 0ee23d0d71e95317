package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigSchemaToStdout(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "PRESENCE_TTL")
	assert.Contains(t, props, "DATABASE_URL")
}

func TestConfigSchemaToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	out, err := execute(t, "config", "schema", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("MESSAGING_API_PORT: 9100\nPRESENCE_TTL: 3s\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("PRESENCE_BACKEND: carrier-pigeon\n"), 0o644))

	t.Setenv("CONFIG_FILE", "")
	out, err := execute(t, "config", "validate", "-f", good)
	require.NoError(t, err)
	assert.Contains(t, out, ":9100")
	assert.Contains(t, out, "ttl 3s")

	_, err = execute(t, "config", "validate", "-f", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "postgres://app:hunter2@db:5432/messaging")
	t.Setenv("ATTACHMENT_S3_SECRET_ACCESS_KEY", "very-secret")

	out, err := execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "app:"+redacted+"@db:5432")

	_, err = execute(t, "config", "show", "--format", "toml")
	require.Error(t, err)
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
