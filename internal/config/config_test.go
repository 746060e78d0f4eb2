package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/crossrepo/internal/domain"
)

// chdir stands in for testing.T.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Days)
	assert.False(t, cfg.IgnoreTags)
	assert.False(t, cfg.RequireScan)
	assert.EqualValues(t, 0, cfg.Concurrency)
	assert.True(t, cfg.ScanOnPush)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CROSSREPO_DAYS", "7")
	t.Setenv("CROSSREPO_CONCURRENCY", "4")
	t.Setenv("CROSSREPO_SCAN_ON_PUSH", "false")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Days)
	assert.EqualValues(t, 4, cfg.Concurrency)
	assert.False(t, cfg.ScanOnPush)
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		wantErr bool
	}{
		{name: "simple", profile: "default", wantErr: false},
		{name: "with dash and underscore", profile: "prod_account-2", wantErr: false},
		{name: "uppercase rejected", profile: "Default", wantErr: true},
		{name: "empty rejected", profile: "", wantErr: true},
		{name: "shell metacharacters rejected", profile: "default;rm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.profile)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRegion(t *testing.T) {
	assert.NoError(t, ValidateRegion("us-east-1"))
	assert.NoError(t, ValidateRegion("eu-west-2"))
	// Underscores are valid in profiles but not in regions.
	assert.ErrorIs(t, ValidateRegion("us_east_1"), domain.ErrInvalidArgument)
	assert.ErrorIs(t, ValidateRegion(""), domain.ErrInvalidArgument)
}
