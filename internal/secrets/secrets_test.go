package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN_FILE", path)

	got, err := Resolve("TELEGRAM_BOT_TOKEN", "from-env")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)
}

func TestResolveKeepsCurrentWithoutFile(t *testing.T) {
	got, err := Resolve("CHAINWATCH_UNSET_SECRET", "from-env")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestResolveMissingFile(t *testing.T) {
	t.Setenv("SMTP_PASSWORD_FILE", filepath.Join(t.TempDir(), "missing"))

	_, err := Resolve("SMTP_PASSWORD", "")
	assert.Error(t, err)
}

func TestResolveAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("hunter2"), 0o600))
	t.Setenv("REDIS_PASSWORD_FILE", path)

	redisPassword := ""
	smtpPassword := "plain"
	require.NoError(t, ResolveAll(map[string]*string{
		"REDIS_PASSWORD": &redisPassword,
		"SMTP_PASSWORD":  &smtpPassword,
	}))

	assert.Equal(t, "hunter2", redisPassword)
	assert.Equal(t, "plain", smtpPassword)
}
