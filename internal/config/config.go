// Package config loads soundsrided's runtime configuration: a TOML
// file of tuning constants, overridable by environment variables, with
// optional live reload via fsnotify.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Tunables holds the spec's tolerances and tuning constants (spec.md
// section 6), loadable from a TOML file.
type Tunables struct {
	DeviationToleranceMS   int64 `toml:"deviation_tolerance_ms"`
	HotZoneEntranceMS      int64 `toml:"hot_zone_entrance_ms"` // 0 means +Inf, see Defaults
	TransitionSafeZoneMS   int64 `toml:"transition_safe_zone_ms"`
	CrossFadeMS            int64 `toml:"cross_fade_ms"`
	LongCrossFadeMS        int64 `toml:"long_cross_fade_ms"`
	ChunkLengthMS          int64 `toml:"chunk_length_ms"`
	LookaheadSnippetCount  int   `toml:"lookahead_snippet_count"`
	// FadeCurve selects the gain curve mixplan.Render applies across a
	// fade window: "linear" (default) or "smoothstep". See
	// internal/audio's Smoothstep.
	FadeCurve string `toml:"fade_curve"`
}

// HotZoneEntranceOrInf returns HotZoneEntranceMS, treating the TOML
// zero value as "unset" and returning +Inf per spec.md's default.
func (t Tunables) HotZoneEntranceOrInf() int64 {
	if t.HotZoneEntranceMS <= 0 {
		return int64(1) << 62
	}
	return t.HotZoneEntranceMS
}

// Defaults matches spec.md section 6's literal default values.
func Defaults() Tunables {
	return Tunables{
		DeviationToleranceMS:  0,
		HotZoneEntranceMS:     0, // unset -> +Inf via HotZoneEntranceOrInf
		TransitionSafeZoneMS:  5000,
		CrossFadeMS:           3000,
		LongCrossFadeMS:       25000,
		ChunkLengthMS:         250,
		LookaheadSnippetCount: 3,
		FadeCurve:             "linear",
	}
}

// Config holds all runtime configuration for soundsrided.
type Config struct {
	ListenAddr string
	LibraryDir string
	LogDir     string
	Tunables   Tunables
}

// Load reads configuration from an optional TOML file at path, then
// applies environment variable overrides (teacher's envStr/envInt
// fallback pattern). An empty path skips the file and uses defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddr: envStr("SOUNDSRIDE_LISTEN_ADDR", ":8080"),
		LibraryDir: envStr("SOUNDSRIDE_LIBRARY_DIR", "./library"),
		LogDir:     envStr("SOUNDSRIDE_LOG_DIR", "./log"),
		Tunables:   Defaults(),
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var fileCfg struct {
				Tunables Tunables `toml:"tunables"`
			}
			if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
			cfg.Tunables = fileCfg.Tunables
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	cfg.Tunables.LookaheadSnippetCount = envInt("SOUNDSRIDE_LOOKAHEAD_SNIPPET_COUNT", cfg.Tunables.LookaheadSnippetCount)

	return cfg, nil
}

// Atomic wraps a Tunables value behind an atomic pointer so the
// session coordinator can read tunables concurrently with a
// file-watch-triggered reload, never blocking a forecast in flight.
type Atomic struct {
	ptr atomic.Pointer[Tunables]
}

// NewAtomic creates an Atomic seeded with the given value.
func NewAtomic(t Tunables) *Atomic {
	a := &Atomic{}
	a.Store(t)
	return a
}

// Load returns the current tunables.
func (a *Atomic) Load() Tunables {
	return *a.ptr.Load()
}

// Store replaces the current tunables.
func (a *Atomic) Store(t Tunables) {
	a.ptr.Store(&t)
}

// Watch reloads the TOML file at path into target whenever it changes
// on disk, until ctx is cancelled. Grounded on
// stojg-playlist-sorter/view.go's fsnotify watch loop, generalized
// from a UI refresh to a config hot-reload.
func Watch(ctx context.Context, path string, target *Atomic, onErr func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				var fileCfg struct {
					Tunables Tunables `toml:"tunables"`
				}
				if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
					if onErr != nil {
						onErr(fmt.Errorf("config: reload %s: %w", path, err))
					}
					continue
				}
				target.Store(fileCfg.Tunables)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()

	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
