package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 3, config.Filter.FavoriteLimit)
	assert.Equal(t, "info", config.Log.Level)
	assert.Empty(t, config.Redis.Addr)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("覆盖部分字段", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "itemflow.yaml")
		content := `
database:
  dsn: /tmp/tracker.sqlite3
redis:
  addr: localhost:6379
  timeout: 1s
log:
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		config, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/tracker.sqlite3", config.Database.DSN)
		assert.Equal(t, "localhost:6379", config.Redis.Addr)
		assert.Equal(t, time.Second, config.Redis.Timeout)
		assert.Equal(t, "debug", config.Log.Level)
		// 没有配置的字段保持默认值
		assert.Equal(t, 3, config.Filter.FavoriteLimit)
	})

	t.Run("非法配置", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "itemflow.yaml")
		require.NoError(t, os.WriteFile(path, []byte("filter:\n  favorite_limit: 0\n"), 0o644))

		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadWithoutPath(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}
