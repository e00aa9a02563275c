package piper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultSampleRate applies when a model ships without a readable
// config sidecar.
const defaultSampleRate = 22050

// Model is a Piper voice: an .onnx file plus an optional .onnx.json
// sidecar carrying the sample rate.
type Model struct {
	ID         string
	Path       string
	ConfigPath string
	SampleRate int
	Size       int64
}

// ScanModels walks the configured directories looking for .onnx
// voices. Directories are searched in order and the first model found
// for a given ID wins, so earlier dirs shadow later ones.
func ScanModels(dirs []string) []Model {
	seen := make(map[string]bool)
	var models []Model

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".onnx") {
				return nil
			}
			id := strings.TrimSuffix(filepath.Base(path), ".onnx")
			if seen[id] {
				return nil
			}
			seen[id] = true

			m := Model{
				ID:         id,
				Path:       path,
				SampleRate: defaultSampleRate,
				Size:       info.Size(),
			}
			sidecar := path + ".json"
			if _, err := os.Stat(sidecar); err == nil {
				m.ConfigPath = sidecar
				if rate := readSampleRate(sidecar); rate > 0 {
					m.SampleRate = rate
				}
			}
			models = append(models, m)
			return nil
		})
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models
}

// readSampleRate pulls audio.sample_rate out of a model config.
func readSampleRate(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var cfg struct {
		Audio struct {
			SampleRate int `json:"sample_rate"`
		} `json:"audio"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0
	}
	return cfg.Audio.SampleRate
}

// WatchModels watches the model directories and invokes onChange when
// a voice file appears, changes, or disappears. The watcher runs until
// stop is closed. Missing directories are skipped silently.
func WatchModels(dirs []string, onChange func(), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := 0
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Debug("piper watch failed", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return nil
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.Contains(ev.Name, ".onnx") {
					log.Debug("piper model change", "event", ev.Op.String(), "path", ev.Name)
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("piper watch error", "error", err)
			case <-stop:
				return
			}
		}
	}()
	return nil
}
