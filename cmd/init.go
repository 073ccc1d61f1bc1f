package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default .assetpipe.yml",
	Long: `Write the default configuration to .assetpipe.yml in the given directory
(the current directory when omitted). An existing file is kept unless
--force is given. With --scaffold the conventional source layout is
created as well.

Examples:
  assetpipe init
  assetpipe init site --scaffold
  assetpipe init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce    bool
	initScaffold bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initScaffold, "scaffold", false, "Create the source directory layout and starter files")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	out := cmd.OutOrStdout()
	cfg := config.Default()

	written, err := createConfigFile(projectDir, cfg, initForce)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(out, "Created %s\n", filepath.Join(projectDir, config.FileName+".yml"))
	} else {
		fmt.Fprintln(out, "Configuration file already exists, skipping (use --force to overwrite)")
	}

	if initScaffold {
		if err := createSourceLayout(projectDir, cfg); err != nil {
			return fmt.Errorf("failed to create source layout: %w", err)
		}
		fmt.Fprintf(out, "Created source layout under %s\n", filepath.Join(projectDir, cfg.Paths.Source))
	}

	return nil
}

// createConfigFile writes cfg as YAML. It reports false when a file
// already exists and force is not set.
func createConfigFile(projectDir string, cfg *config.Config, force bool) (bool, error) {
	configPath := filepath.Join(projectDir, config.FileName+".yml")

	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	var buf bytes.Buffer
	buf.WriteString("# assetpipe configuration file\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return false, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return false, fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

var starterFiles = map[string]string{
	"html/index.html": `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Home</title>
<link rel="stylesheet" href="styles/styles.min.css">
</head>
<body>
@@include('partials/header.html')
<main>Hello</main>
<script src="scripts/main.min.js"></script>
</body>
</html>
`,
	"html/partials/header.html": "<header>assetpipe</header>\n",
	"styles/styles.less": `@import "base.less";
`,
	"styles/base.less": `@text: #222;

body {
  color: @text;
}
`,
	"scripts/dev/main.js": `console.log("ready");
`,
}

func createSourceLayout(projectDir string, cfg *config.Config) error {
	root := filepath.Join(projectDir, cfg.Paths.Source)
	dirs := []string{
		"html/partials",
		"styles",
		"scripts/dev",
		"scripts/vendor",
		"assets/icons",
		"assets/fonts",
		"assets/images",
		"assets/svg-sprite",
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	for rel, content := range starterFiles {
		path := filepath.Join(root, rel)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}

	return nil
}
