package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SOUNDSHELF_FETCH_RATE sets fetch.rate.
var envKeyReplacer = strings.NewReplacer(".", "_")

const defaultConfig = `# style name or JSON path for rendered output (default "auto")
style: "auto"
# word-wrap at width, 0 detects the terminal width
width: 0

database:
  # defaults to soundshelf.db in the user data directory
  # path: "~/.local/share/soundshelf/soundshelf.db"

storage:
  # public object storage that bare audio paths resolve against
  base_url: "https://storage.soundshelf.dev"
  bucket: "audio"

search:
  # semantic search endpoint, leave empty to search locally
  endpoint: ""
  timeout: "10s"
  # failures before switching to local search
  max_failures: 3
  # how long to stay on local search before trying the endpoint again
  retry_after: "1m"

fetch:
  # audio downloads per second
  rate: 4
  burst: 2
  # prefetch workers in the browser
  workers: 2
  timeout: "30s"
  queue_size: 32

cache:
  # defaults to the user cache directory
  # dir: "~/.cache/soundshelf/audio"
  memory_mb: 64
  disk_mb: 512
  # zstd level, 0 disables compression
  compression_level: 3
  ttl_days: 7

audio:
  # 44100 or 48000
  sample_rate: 44100
  buffer_size: "100ms"
  # 0.0 to 1.0
  volume: 1.0

ui:
  # auto, dark or light
  theme: "auto"
  # mouse support
  mouse: false

download:
  dir: "~/Downloads"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the soundshelf config file",
	Long:    paragraph(fmt.Sprintf("\n%s the soundshelf config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("soundshelf config\nsoundshelf config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("soundshelf", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
