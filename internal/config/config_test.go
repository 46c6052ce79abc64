package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.DocumentStore)
	assert.Equal(t, 20, cfg.CaptchaMaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 15*time.Second, cfg.ArchiveTimeout)
	assert.Equal(t, []string{"tesseract"}, cfg.CaptchaSolvers)
	assert.Equal(t, "https://hcservices.ecourts.gov.in/hcservices/", cfg.HighCourtBaseURL)
	assert.True(t, cfg.HeadlessMode)
	assert.False(t, cfg.BrowserEnabled)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCUMENT_STORE", "Memory")
	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "5")
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("CAPTCHA_SOLVERS", "2captcha, Tesseract ,")
	t.Setenv("BUCKET_NAME", "orders")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.DocumentStore)
	assert.Equal(t, 5, cfg.CaptchaMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"2captcha", "tesseract"}, cfg.CaptchaSolvers)
	assert.Equal(t, "orders", cfg.BucketName)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown store", "DOCUMENT_STORE", "redis"},
		{"zero captcha budget", "CAPTCHA_MAX_ATTEMPTS", "0"},
		{"non numeric captcha budget", "CAPTCHA_MAX_ATTEMPTS", "many"},
		{"negative portal rate", "PORTAL_RATE_LIMIT", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
