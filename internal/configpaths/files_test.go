package configpaths_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjay900/joybridge/internal/configpaths"
)

func TestDefaultConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses AppData on windows")
	}
	tests := []struct {
		name string
		xdg  string
		home string
		want string
	}{
		{name: "xdg wins", xdg: "/tmp/xdg", home: "/home/u", want: "/tmp/xdg/joybridge"},
		{name: "home fallback", home: "/home/u", want: "/home/u/.config/joybridge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)
			t.Setenv("HOME", tt.home)
			dir, err := configpaths.DefaultConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, dir)
		})
	}
}

func TestConfigCandidatePaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	tests := []struct {
		name     string
		user     string
		wantJSON string
		wantYAML string
		wantTOML string
	}{
		{name: "yaml user file first", user: "my.yml", wantYAML: "my.yml"},
		{name: "toml user file first", user: "/x/bridge.toml", wantTOML: "/x/bridge.toml"},
		{name: "unknown extension goes to json", user: "bridge.conf", wantJSON: "bridge.conf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, tm := configpaths.ConfigCandidatePaths(tt.user)
			if tt.wantJSON != "" {
				assert.Equal(t, tt.wantJSON, j[0])
			}
			if tt.wantYAML != "" {
				assert.Equal(t, tt.wantYAML, y[0])
			}
			if tt.wantTOML != "" {
				assert.Equal(t, tt.wantTOML, tm[0])
			}
		})
	}

	j, _, _ := configpaths.ConfigCandidatePaths("")
	assert.Contains(t, j, filepath.Join("/tmp/xdg", "joybridge", "bridge.json"))
}

func TestDefaultNamedConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if runtime.GOOS == "windows" {
		t.Skip("uses AppData on windows")
	}
	p, err := configpaths.DefaultNamedConfigPath("bridge", "yml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/joybridge/bridge.yaml", p)
}
