package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.Paths.Source)
	assert.Equal(t, "dist", cfg.Paths.Dest)
	assert.Equal(t, []string{"html/*.html"}, cfg.Resources.Markup)
	assert.Len(t, cfg.Resources.Static, 2)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Delay)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.BulkDelay)
	assert.Equal(t, "symbols.svg", cfg.Outputs.SpriteName)
	assert.Equal(t, "lessc", cfg.Style.Command)
	assert.Empty(t, cfg.Style.PostCommand)
	assert.Contains(t, cfg.Style.PostArgs, "autoprefixer")
	assert.True(t, cfg.Server.Open)
	assert.Equal(t, "localhost:3000", cfg.Address())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "override shorter list replaces default",
			setup: func(v *viper.Viper) {
				v.Set("resources.static", []string{"assets/fonts/*.woff2"})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"assets/fonts/*.woff2"}, cfg.Resources.Static)
			},
		},
		{
			name: "duration strings",
			setup: func(v *viper.Viper) {
				v.Set("watch.delay", "50ms")
				v.Set("watch.bulk_delay", "1s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 50*time.Millisecond, cfg.Watch.Delay)
				assert.Equal(t, time.Second, cfg.Watch.BulkDelay)
			},
		},
		{
			name: "no-open flag override",
			setup: func(v *viper.Viper) {
				v.Set("server.open", true)
				v.Set("server.no-open", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Server.Open)
			},
		},
		{
			name: "invalid port type",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "dest equals project root",
			setup: func(v *viper.Viper) {
				v.Set("paths.dest", ".")
			},
			expectError: true,
		},
		{
			name: "dest contains source",
			setup: func(v *viper.Viper) {
				v.Set("paths.source", "site/src")
				v.Set("paths.dest", "site")
			},
			expectError: true,
		},
		{
			name: "dest contains dot-prefixed source",
			setup: func(v *viper.Viper) {
				v.Set("paths.source", filepath.Join("dist", "..assets"))
				v.Set("paths.dest", "dist")
			},
			expectError: true,
		},
		{
			name: "dest beside dot-prefixed source",
			setup: func(v *viper.Viper) {
				v.Set("paths.source", "..assets")
				v.Set("paths.dest", "dist")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "..assets", cfg.Paths.Source)
			},
		},
		{
			name: "pattern with traversal",
			setup: func(v *viper.Viper) {
				v.Set("resources.images", []string{"../secrets/*.png"})
			},
			expectError: true,
		},
		{
			name: "zero debounce",
			setup: func(v *viper.Viper) {
				v.Set("watch.delay", "0s")
			},
			expectError: true,
		},
		{
			name: "jpeg quality out of range",
			setup: func(v *viper.Viper) {
				v.Set("images.jpeg_quality", 101)
			},
			expectError: true,
		},
		{
			name: "sprite name with directory",
			setup: func(v *viper.Viper) {
				v.Set("outputs.sprite_name", "icons/symbols.svg")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName+".yml")
	content := `
paths:
  source: assets-src
  dest: public
server:
  port: 8080
style:
  command: npx
  args: ["lessc", "--math=always"]
  post_command: postcss
  post_args: ["--use", "autoprefixer"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "assets-src", cfg.Paths.Source)
	assert.Equal(t, "public", cfg.Paths.Dest)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "npx", cfg.Style.Command)
	assert.Equal(t, []string{"lessc", "--math=always"}, cfg.Style.Args)
	assert.Equal(t, "postcss", cfg.Style.PostCommand)
	assert.Equal(t, []string{"--use", "autoprefixer"}, cfg.Style.PostArgs)
	assert.Equal(t, []string{"scripts/dev/*.js"}, cfg.Resources.ScriptsDev)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ASSETPIPE_SERVER_PORT", "9090")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(EnvKeyReplacer())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidateServerConfig(t *testing.T) {
	assert.NoError(t, validateServerConfig(&ServerConfig{Port: 0, Host: "127.0.0.1"}))
	assert.Error(t, validateServerConfig(&ServerConfig{Port: 70000}))
	assert.Error(t, validateServerConfig(&ServerConfig{Port: 80, Host: "localhost;rm"}))
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, validatePattern("assets/**/*.{png,jpg}"))
	assert.Error(t, validatePattern(""))
	assert.Error(t, validatePattern("/etc/*.conf"))
	assert.Error(t, validatePattern("a/../../b"))
}
