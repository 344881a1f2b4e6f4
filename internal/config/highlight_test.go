package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHighlightStyles_Defaults(t *testing.T) {
	styles, err := LoadHighlightStyles("")
	require.NoError(t, err)

	assert.Equal(t, "comment-highlight", styles.MarkerClass)
	assert.Contains(t, styles.Rest, "rgba(250, 204, 21, 0.3)")
	assert.Contains(t, styles.Hover, "rgba(250, 204, 21, 0.5)")
	assert.Contains(t, styles.Active, "outline")
}

func TestLoadHighlightStyles_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active: \"background-color: red\"\n"), 0o644))

	styles, err := LoadHighlightStyles(path)
	require.NoError(t, err)

	assert.Equal(t, "background-color: red", styles.Active)
	assert.Equal(t, DefaultHighlightStyles().Rest, styles.Rest)
}

func TestLoadHighlightStyles_MissingFile(t *testing.T) {
	_, err := LoadHighlightStyles(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_TablePrefix(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{name: "prod", env: "prod", want: "prod_"},
		{name: "test", env: "test", want: "test_"},
		{name: "dev", env: "dev", want: "dev_"},
		{name: "unknown falls back to dev", env: "staging", want: "dev_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", tt.env)
			t.Setenv("TABLE_PREFIX", "")
			assert.Equal(t, tt.want, Load().TablePrefix)
		})
	}
}
