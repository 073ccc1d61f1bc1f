// Package config provides configuration management for assetpipe using
// Viper for loading from files, environment variables and command-line
// flags.
//
// The configuration describes the filesystem layout contract (source and
// destination roots, glob patterns per resource kind, output subpaths), the
// dev server address, watch debounce delays and the options handed to the
// content transformers.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the default configuration file name, without extension.
const FileName = ".assetpipe"

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ASSETPIPE"

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Resources ResourcesConfig `mapstructure:"resources" yaml:"resources"`
	Outputs   OutputsConfig   `mapstructure:"outputs" yaml:"outputs"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Style     StyleConfig     `mapstructure:"style" yaml:"style"`
	Images    ImagesConfig    `mapstructure:"images" yaml:"images"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type PathsConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Dest   string `mapstructure:"dest" yaml:"dest"`
}

// ResourcesConfig holds glob patterns relative to the source root. Entry
// globs select the files a task processes; watch globs select the files
// whose change reruns it (partials included).
type ResourcesConfig struct {
	Markup        []string `mapstructure:"markup" yaml:"markup"`
	MarkupWatch   []string `mapstructure:"markup_watch" yaml:"markup_watch"`
	ScriptsDev    []string `mapstructure:"scripts_dev" yaml:"scripts_dev"`
	ScriptsVendor []string `mapstructure:"scripts_vendor" yaml:"scripts_vendor"`
	Styles        []string `mapstructure:"styles" yaml:"styles"`
	StylesWatch   []string `mapstructure:"styles_watch" yaml:"styles_watch"`
	Static        []string `mapstructure:"static" yaml:"static"`
	Images        []string `mapstructure:"images" yaml:"images"`
	Sprite        []string `mapstructure:"sprite" yaml:"sprite"`
}

// OutputsConfig holds output subpaths relative to the destination root.
type OutputsConfig struct {
	Scripts    string `mapstructure:"scripts" yaml:"scripts"`
	Styles     string `mapstructure:"styles" yaml:"styles"`
	Images     string `mapstructure:"images" yaml:"images"`
	Icons      string `mapstructure:"icons" yaml:"icons"`
	SpriteName string `mapstructure:"sprite_name" yaml:"sprite_name"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

type WatchConfig struct {
	Delay     time.Duration `mapstructure:"delay" yaml:"delay"`
	BulkDelay time.Duration `mapstructure:"bulk_delay" yaml:"bulk_delay"`
}

type StyleConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// PostCommand filters the compiled CSS through stdin/stdout before it
	// is written. Empty disables the step.
	PostCommand string   `mapstructure:"post_command" yaml:"post_command"`
	PostArgs    []string `mapstructure:"post_args" yaml:"post_args"`
}

type ImagesConfig struct {
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration matching the conventional project
// layout: sources under src/, output under dist/.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Source: "src",
			Dest:   "dist",
		},
		Resources: ResourcesConfig{
			Markup:        []string{"html/*.html"},
			MarkupWatch:   []string{"html/**/*.html", "html/**/*.md"},
			ScriptsDev:    []string{"scripts/dev/*.js"},
			ScriptsVendor: []string{"scripts/vendor/*.js"},
			Styles:        []string{"styles/styles.less"},
			StylesWatch:   []string{"styles/**/*.less"},
			Static: []string{
				"assets/icons/**/*.*",
				"assets/fonts/**/*.{woff,woff2}",
			},
			Images: []string{"assets/images/**/*.{png,jpg,jpeg,webp,gif,svg}"},
			Sprite: []string{"assets/svg-sprite/*.svg"},
		},
		Outputs: OutputsConfig{
			Scripts:    "scripts",
			Styles:     "styles",
			Images:     "assets/images",
			Icons:      "assets/icons",
			SpriteName: "symbols.svg",
		},
		Server: ServerConfig{
			Port: 3000,
			Host: "localhost",
			Open: true,
		},
		Watch: WatchConfig{
			Delay:     200 * time.Millisecond,
			BulkDelay: 500 * time.Millisecond,
		},
		Style: StyleConfig{
			Command:  "lessc",
			PostArgs: []string{"--use", "autoprefixer", "--use", "postcss-sort-media-queries", "--no-map"},
		},
		Images: ImagesConfig{
			JPEGQuality: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every default with v so environment overrides
// resolve for keys that no config file sets.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("paths.source", d.Paths.Source)
	v.SetDefault("paths.dest", d.Paths.Dest)
	v.SetDefault("resources.markup", d.Resources.Markup)
	v.SetDefault("resources.markup_watch", d.Resources.MarkupWatch)
	v.SetDefault("resources.scripts_dev", d.Resources.ScriptsDev)
	v.SetDefault("resources.scripts_vendor", d.Resources.ScriptsVendor)
	v.SetDefault("resources.styles", d.Resources.Styles)
	v.SetDefault("resources.styles_watch", d.Resources.StylesWatch)
	v.SetDefault("resources.static", d.Resources.Static)
	v.SetDefault("resources.images", d.Resources.Images)
	v.SetDefault("resources.sprite", d.Resources.Sprite)
	v.SetDefault("outputs.scripts", d.Outputs.Scripts)
	v.SetDefault("outputs.styles", d.Outputs.Styles)
	v.SetDefault("outputs.images", d.Outputs.Images)
	v.SetDefault("outputs.icons", d.Outputs.Icons)
	v.SetDefault("outputs.sprite_name", d.Outputs.SpriteName)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("watch.delay", d.Watch.Delay)
	v.SetDefault("watch.bulk_delay", d.Watch.BulkDelay)
	v.SetDefault("style.command", d.Style.Command)
	v.SetDefault("style.args", d.Style.Args)
	v.SetDefault("style.post_command", d.Style.PostCommand)
	v.SetDefault("style.post_args", d.Style.PostArgs)
	v.SetDefault("images.jpeg_quality", d.Images.JPEGQuality)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// EnvKeyReplacer maps config keys such as server.no-open onto
// ASSETPIPE_SERVER_NO_OPEN.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v and validates the result. Defaults are registered
// on v first; decoding into a zero Config keeps a shorter list from a
// config file from being merged into a longer default list.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Override open if explicitly disabled via flag
	if v.IsSet("server.no-open") && v.GetBool("server.no-open") {
		cfg.Server.Open = false
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SourceDir returns the source root as a cleaned path.
func (c *Config) SourceDir() string {
	return filepath.Clean(c.Paths.Source)
}

// DestDir returns the destination root as a cleaned path.
func (c *Config) DestDir() string {
	return filepath.Clean(c.Paths.Dest)
}

// Address returns the host:port the dev server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates configuration values for safety and correctness
func validateConfig(config *Config) error {
	if err := validatePaths(&config.Paths); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateResources(&config.Resources); err != nil {
		return fmt.Errorf("resources config: %w", err)
	}

	if err := validateOutputs(&config.Outputs); err != nil {
		return fmt.Errorf("outputs config: %w", err)
	}

	if config.Watch.Delay <= 0 || config.Watch.BulkDelay <= 0 {
		return fmt.Errorf("watch config: delays must be positive")
	}

	if strings.TrimSpace(config.Style.Command) == "" {
		return fmt.Errorf("style config: command is empty")
	}

	if config.Images.JPEGQuality < 1 || config.Images.JPEGQuality > 100 {
		return fmt.Errorf("images config: jpeg_quality %d is not in range 1-100", config.Images.JPEGQuality)
	}

	return nil
}

// validatePaths rejects destinations that clean would turn into a
// disaster: the working directory, the filesystem root, or an ancestor of
// the source tree.
func validatePaths(config *PathsConfig) error {
	if strings.TrimSpace(config.Source) == "" {
		return fmt.Errorf("source is empty")
	}
	if strings.TrimSpace(config.Dest) == "" {
		return fmt.Errorf("dest is empty")
	}

	dest := filepath.Clean(config.Dest)
	if dest == "." || dest == string(filepath.Separator) {
		return fmt.Errorf("dest %q would remove the project or filesystem root", config.Dest)
	}

	absSrc, err := filepath.Abs(config.Source)
	if err != nil {
		return fmt.Errorf("resolving source: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving dest: %w", err)
	}
	if absSrc == absDest {
		return fmt.Errorf("dest and source are the same directory")
	}
	if rel, err := filepath.Rel(absDest, absSrc); err == nil && !isOutside(rel) {
		return fmt.Errorf("dest %q contains the source tree", config.Dest)
	}

	return nil
}

// isOutside reports whether a filepath.Rel result leaves its base.
func isOutside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

func validateResources(config *ResourcesConfig) error {
	groups := map[string][]string{
		"markup":         config.Markup,
		"markup_watch":   config.MarkupWatch,
		"scripts_dev":    config.ScriptsDev,
		"scripts_vendor": config.ScriptsVendor,
		"styles":         config.Styles,
		"styles_watch":   config.StylesWatch,
		"static":         config.Static,
		"images":         config.Images,
		"sprite":         config.Sprite,
	}

	for name, patterns := range groups {
		if len(patterns) == 0 {
			return fmt.Errorf("%s has no patterns", name)
		}
		for _, p := range patterns {
			if err := validatePattern(p); err != nil {
				return fmt.Errorf("%s pattern %q: %w", name, p, err)
			}
		}
	}

	return nil
}

func validateOutputs(config *OutputsConfig) error {
	for name, p := range map[string]string{
		"scripts": config.Scripts,
		"styles":  config.Styles,
		"images":  config.Images,
		"icons":   config.Icons,
	} {
		if p == "" {
			continue
		}
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("%s %q: %w", name, p, err)
		}
	}

	if config.SpriteName == "" || strings.ContainsAny(config.SpriteName, `/\`) {
		return fmt.Errorf("sprite_name %q must be a plain file name", config.SpriteName)
	}

	return nil
}

// validatePattern checks that a glob or subpath stays inside its root.
func validatePattern(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("empty path")
	}

	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must be relative")
	}

	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal")
		}
	}

	return nil
}
