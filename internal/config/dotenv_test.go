package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rentalhub/rental-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv_SkipsUnreadableFile(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("production", &buf)
	defer logger.InitWithWriter("production", io.Discard)

	dir := t.TempDir()
	broken := filepath.Join(dir, ".env.local")
	require.NoError(t, os.Mkdir(broken, 0o700))
	good := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(good, []byte("RENTAL_DOTENV_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RENTAL_DOTENV_TEST") })

	loaded := loadDotEnv([]string{broken, good, filepath.Join(dir, ".env.missing")})

	assert.Equal(t, []string{good}, loaded)
	assert.Equal(t, "from-file", os.Getenv("RENTAL_DOTENV_TEST"))
	assert.Contains(t, buf.String(), "skipping env file")
	assert.Contains(t, buf.String(), broken)
}

func TestLoadDotEnv_ProcessEnvWins(t *testing.T) {
	t.Setenv("RENTAL_DOTENV_TEST", "from-process")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RENTAL_DOTENV_TEST=from-file\n"), 0o600))

	assert.Equal(t, []string{path}, loadDotEnv([]string{path}))
	assert.Equal(t, "from-process", os.Getenv("RENTAL_DOTENV_TEST"))
}
