package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "/uploads", cfg.Storage.PublicPrefix)
	assert.Equal(t, int64(100*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.JWTTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ListingTTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SearchTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.NotEmpty(t, cfg.Security.JWTSecret)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEDIASHARE_HTTP_PORT", "8081")
	t.Setenv("MEDIASHARE_CACHE_SEARCHTTL", "30s")
	t.Setenv("MEDIASHARE_ALLOWCORSORIGINS", "https://a.example,https://b.example")
	t.Setenv("MEDIASHARE_SECURITY_JWTSECRET", "from-env")
	t.Setenv("MEDIASHARE_STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("MEDIASHARE_STORAGE_ACCESSKEY", "AK")
	t.Setenv("MEDIASHARE_STORAGE_SECRETKEY", "SK")
	t.Setenv("MEDIASHARE_REDIS_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.SearchTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, "minio:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "AK", cfg.Storage.AccessKey)
	assert.Equal(t, "SK", cfg.Storage.SecretKey)
	assert.Equal(t, "pw", cfg.Redis.Password)
}

func TestLoadProductionSecretFromEnv(t *testing.T) {
	t.Setenv("MEDIASHARE_ENVIRONMENT", "production")
	t.Setenv("MEDIASHARE_SECURITY_JWTSECRET", "prod-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prod-secret", cfg.Security.JWTSecret)
}

func TestEveryFieldHasDefault(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	known := make(map[string]bool)
	for _, key := range v.AllKeys() {
		known[key] = true
	}

	for _, key := range fieldKeys(reflect.TypeOf(AppConfig{}), "") {
		assert.True(t, known[key], "no default registered for %s", key)
	}
}

func fieldKeys(typ reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := prefix + strings.ToLower(field.Name)
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, fieldKeys(field.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("production without secret", func(t *testing.T) {
		t.Setenv("MEDIASHARE_ENVIRONMENT", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "jwtsecret")
	})
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("MEDIASHARE_STORAGE_BACKEND", "ftp")
		_, err := Load()
		assert.ErrorContains(t, err, "storage backend")
	})
	t.Run("redis cache without redis", func(t *testing.T) {
		t.Setenv("MEDIASHARE_CACHE_BACKEND", "redis")
		_, err := Load()
		assert.ErrorContains(t, err, "requires redis.enabled")
	})
}
