package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, int64(10<<20), cfg.PhotoMaxBytes)
	assert.Equal(t, "Asia/Manila", cfg.Location().String())
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("FACE_SKIP", "false")
	t.Setenv("PHOTO_MIRROR_URLS", "https://a.example.com/upload, ,https://b.example.com/upload")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.False(t, cfg.FaceSkip)
	assert.Equal(t, []string{"https://a.example.com/upload", "https://b.example.com/upload"}, cfg.MirrorURLs())
	assert.True(t, cfg.CloudinaryEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "sqs")
	_, err := Load()
	assert.ErrorContains(t, err, "SQS_QUEUE_URL")

	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "TIMEZONE")
}
