// Package main provides the entry point for the ReadAnything CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"readanything/tts"
	"readanything/tts/audio"
	"readanything/tts/cache"
	"readanything/tts/engines"
	"readanything/tts/engines/mock"
	"readanything/tts/engines/piper"
	tsync "readanything/tts/sync"
	"readanything/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	engineName    string
	voiceFlag     string
	wpmFlag       int
	tui           bool
	debug         bool
	noCache       bool
	fromClipboard bool

	rootCmd = &cobra.Command{
		Use:   "readanything [text|file|-]",
		Short: "Read any text aloud, word by word",
		Long: paragraph(
			fmt.Sprintf("\nRead any text aloud, %s.", keyword("word by word")),
		),
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(_ *cobra.Command) error {
	engineName = viper.GetString("engine")
	voiceFlag = viper.GetString("voice")
	wpmFlag = viper.GetInt("wpm")
	tui = viper.GetBool("tui")
	debug = viper.GetBool("debug")

	if debug {
		log.SetLevel(log.DebugLevel)
	}
	if wpmFlag != 0 && (wpmFlag < tts.MinWPM || wpmFlag > tts.MaxWPM) {
		return fmt.Errorf("wpm must be between %d and %d, got %d", tts.MinWPM, tts.MaxWPM, wpmFlag)
	}
	if tui && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("tui mode requires a terminal")
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// gatherText resolves the text to speak: the clipboard, a piped stdin, an
// explicit -, a file path, or the arguments themselves taken literally.
func gatherText(args []string) (string, error) {
	if fromClipboard {
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return text, nil
	}

	if len(args) == 1 && args[0] == "-" {
		return readStdin()
	}

	if len(args) == 0 {
		if yes, err := stdinIsPipe(); err != nil {
			return "", err
		} else if yes {
			return readStdin()
		}
		return "", errors.New("nothing to read: pass text, a file, - for stdin, or --clipboard")
	}

	if len(args) == 1 {
		if st, err := os.Stat(args[0]); err == nil && !st.IsDir() {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return "", fmt.Errorf("unable to read file: %w", err)
			}
			return string(b), nil
		}
	}

	return strings.Join(args, " "), nil
}

func readStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("unable to read stdin: %w", err)
	}
	return string(b), nil
}

func execute(_ *cobra.Command, args []string) error {
	text, err := gatherText(args)
	if err != nil {
		return err
	}
	if len(tts.Tokenize(text)) == 0 {
		return tts.ErrNoText
	}

	cfg, err := tts.LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Engine == "" {
		cfg.Engine = string(tts.EngineSystem)
	}
	if cfg.WPM == 0 {
		cfg.WPM = tts.BaselineWPM
	}

	session, registry, cleanup, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	voices := registry.Discover(context.Background())
	if len(voices) == 0 {
		return errors.New("no usable speech engines found")
	}
	voiceID := cfg.Voice
	if voiceID == "" {
		voiceID = defaultVoice(voices, tts.EngineKind(cfg.Engine))
	}

	if tui {
		return runTUI(session, text, voiceID, cfg.WPM)
	}
	return runCLI(session, text, voiceID, cfg.WPM)
}

// buildEngines assembles the adapter set. The configured default engine is
// moved to the front so its voices win duplicate-identifier resolution. The
// mock engine only joins the set when explicitly selected.
func buildEngines(cfg tts.Config) ([]tts.Engine, *piper.Engine) {
	pip := piper.New(cfg.Piper.Binary, cfg.Piper.ModelDirs, cfg.Timeouts.Synthesis)
	engs := []tts.Engine{
		engines.NewSystem(cfg.Timeouts.Synthesis),
		pip,
		engines.NewGTTS(cfg.GTTS.Binary, cfg.GTTS.Language, cfg.Timeouts.Synthesis),
		engines.NewEdge(cfg.Edge.Voice),
		engines.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
	}
	if cfg.Engine == string(tts.EngineMock) {
		engs = append(engs, mock.New())
	}
	for i, e := range engs {
		if string(e.Kind()) == cfg.Engine && i > 0 {
			rest := append(engs[:i:i], engs[i+1:]...)
			engs = append([]tts.Engine{e}, rest...)
			break
		}
	}
	return engs, pip
}

func buildSession(cfg tts.Config) (*tts.Session, *tts.Registry, func(), error) {
	engs, pip := buildEngines(cfg)
	registry := tts.NewRegistry(engs, tts.RegistryConfig{
		ProbeTimeout:     cfg.Timeouts.Probe,
		DiscoveryTimeout: cfg.Timeouts.Discovery,
	})

	var player tts.Player
	if p, err := audio.NewPlayer(); err != nil {
		log.Warn("audio device unavailable, timing playback on the wall clock", "err", err)
		player = audio.NewTimedPlayer()
	} else {
		player = p
	}

	var store tts.Cache
	if cfg.Cache.Enabled && !noCache {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = defaultCacheDir()
		}
		m, err := cache.NewManager(dir, int64(cfg.Cache.MaxSizeMB)<<20)
		if err != nil {
			log.Warn("cache unavailable", "dir", dir, "err", err)
		} else {
			store = m
		}
	}

	session := tts.NewSession(registry, player, tsync.NewManager(tsync.DefaultUpdateRate), store, tts.SessionConfig{
		SynthesisTimeout: cfg.Timeouts.Synthesis,
		StopTimeout:      cfg.Timeouts.Stop,
		CacheEnabled:     store != nil,
	})

	stop := make(chan struct{})
	if err := pip.Watch(registry.MarkStale, stop); err != nil {
		log.Debug("piper model watch unavailable", "err", err)
	}
	return session, registry, func() { close(stop) }, nil
}

func defaultVoice(voices []tts.Voice, kind tts.EngineKind) string {
	for _, v := range voices {
		if v.Engine == kind {
			return v.ID
		}
	}
	return voices[0].ID
}

func defaultCacheDir() string {
	scope := gap.NewScope(gap.User, "readanything")
	dir, err := scope.CacheDir()
	if err != nil {
		d, _ := os.UserCacheDir()
		dir = d
	}
	return dir
}

func runCLI(session *tts.Session, text, voiceID string, wpm int) error {
	words := tts.Tokenize(text)
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	done := make(chan struct{})
	var once sync.Once
	var playErr error
	session.OnError(func(err error) { playErr = err })
	session.OnStateChange(func(s tts.SessionState) {
		if s == tts.StateIdle {
			once.Do(func() { close(done) })
		}
	})
	session.OnWord(func(i int) {
		if !isTerminal || i < 0 || i >= len(words) {
			return
		}
		fmt.Printf("\r\033[K%d/%d %s", i+1, len(words), keyword(words[i]))
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	if err := session.Play(tts.Request{Text: text, VoiceID: voiceID, WPM: wpm}); err != nil {
		return err
	}

	select {
	case <-done:
	case <-sig:
		_ = session.Stop()
	}
	if isTerminal {
		fmt.Print("\r\033[K")
	}
	return playErr
}

func runTUI(session *tts.Session, text, voiceID string, wpm int) error {
	p := tea.NewProgram(ui.NewReader(session, text, voiceID, wpm), tea.WithAltScreen())
	session.OnWord(func(i int) { p.Send(ui.WordMsg(i)) })
	session.OnStateChange(func(s tts.SessionState) { p.Send(ui.StateMsg(s)) })
	session.OnError(func(err error) { p.Send(ui.ErrMsg{Err: err}) })

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return session.Stop()
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "", "speech engine (system, gtts, edge, openai, piper)")
	rootCmd.Flags().StringVar(&voiceFlag, "voice", "", "voice identifier (see the voices command)")
	rootCmd.Flags().IntVarP(&wpmFlag, "wpm", "r", 0, "speech rate in words per minute")
	rootCmd.Flags().BoolVarP(&tui, "tui", "t", false, "follow along in the terminal, spoken word highlighted")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the synthesized-audio cache")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read text from the clipboard")

	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("wpm", rootCmd.Flags().Lookup("wpm"))
	_ = viper.BindPFlag("tui", rootCmd.Flags().Lookup("tui"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	viper.SetDefault("engine", string(tts.EngineSystem))
	viper.SetDefault("wpm", tts.BaselineWPM)

	rootCmd.AddCommand(voicesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readanything")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find the configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readanything")}, dirs...)
	}

	if c := os.Getenv("READANYTHING_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readanything")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readanything")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readanything.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
