package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# default speech engine: system, gtts, edge, openai, piper
engine: "system"
# default voice identifier; empty picks the engine's first voice
voice: ""
# speech rate in words per minute (50-300)
wpm: 150
# debug logging
debug: false

# synthesized-audio cache
cache:
  enabled: true
  # dir: "~/.cache/readanything"
  max_size_mb: 100

# timeouts for probing, discovery, synthesis and stop
timeouts:
  probe: 3s
  discovery: 8s
  synthesis: 30s
  stop: 2s

# Google Translate TTS (needs gtts-cli on PATH)
gtts:
  language: "en"
  # binary: "gtts-cli"

# Microsoft Edge neural TTS
edge:
  voice: "en-US-AriaNeural"

# OpenAI speech API; the key comes from OPENAI_API_KEY
openai:
  model: "tts-1"

# Piper neural TTS
piper:
  binary: "piper"
  model_dirs:
    - "~/.local/share/piper/voices"
    - "~/.local/share/readanything/voices"
    - "/usr/share/piper/voices"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readanything config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readanything config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readanything config\nreadanything config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("ReadAnything", configFile)
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
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
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
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
