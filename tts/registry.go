package tts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RegistryConfig tunes voice discovery.
type RegistryConfig struct {
	// ProbeTimeout bounds each adapter probe independently so one hung
	// network probe cannot keep offline voices from appearing.
	ProbeTimeout time.Duration

	// DiscoveryTimeout bounds a whole Discover call.
	DiscoveryTimeout time.Duration
}

// DefaultRegistryConfig returns the discovery timeouts used by the CLI.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ProbeTimeout:     3 * time.Second,
		DiscoveryTimeout: 8 * time.Second,
	}
}

// Registry discovers which engines are usable and enumerates their voices.
// Discovery is idempotent; the voice snapshot changes only on explicit
// rescans.
type Registry struct {
	engines []Engine
	cfg     RegistryConfig

	mu     sync.RWMutex
	voices []Voice
	stale  bool
}

// NewRegistry creates a registry over the given engines. Engine order is
// preserved: when two engines expose the same voice identifier, the earlier
// engine wins resolution.
func NewRegistry(engines []Engine, cfg RegistryConfig) *Registry {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultRegistryConfig().ProbeTimeout
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultRegistryConfig().DiscoveryTimeout
	}
	return &Registry{engines: engines, cfg: cfg}
}

// Discover probes every adapter in parallel and unions the voices of those
// that report themselves available. Unavailable adapters contribute zero
// descriptors without raising. Each probe runs under its own timeout.
func (r *Registry) Discover(ctx context.Context) []Voice {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DiscoveryTimeout)
	defer cancel()

	type result struct {
		order  int
		voices []Voice
	}

	results := make(chan result, len(r.engines))
	var wg sync.WaitGroup
	for i, eng := range r.engines {
		wg.Add(1)
		go func(order int, eng Engine) {
			defer wg.Done()

			probeCtx, probeCancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
			defer probeCancel()

			if !eng.Available(probeCtx) {
				log.Debug("engine not available", "engine", eng.Kind())
				return
			}
			voices, err := eng.Voices(probeCtx)
			if err != nil {
				log.Warn("voice enumeration failed", "engine", eng.Kind(), "err", err)
				return
			}
			results <- result{order: order, voices: voices}
		}(i, eng)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect until every probe has reported or the discovery deadline
	// hits. A probe that ignores its context must not hold the call open.
	collected := make([][]Voice, len(r.engines))
collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			collected[res.order] = res.voices
		case <-ctx.Done():
			log.Warn("voice discovery timed out", "err", ctx.Err())
			break collect
		}
	}

	var all []Voice
	for _, voices := range collected {
		all = append(all, voices...)
	}

	r.mu.Lock()
	r.voices = all
	r.stale = false
	r.mu.Unlock()

	log.Debug("voice discovery complete", "voices", len(all))
	return r.Voices()
}

// Voices returns a copy of the current snapshot, sorted by engine then name.
func (r *Registry) Voices() []Voice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Voice, len(r.voices))
	copy(out, r.voices)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Engine != out[j].Engine {
			return out[i].Engine < out[j].Engine
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Resolve maps a voice identifier to its descriptor. Unknown identifiers
// fail with ErrInvalidVoice.
func (r *Registry) Resolve(voiceID string) (Voice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.voices {
		if v.ID == voiceID {
			return v, nil
		}
	}
	return Voice{}, ErrInvalidVoice
}

// EngineFor returns the engine adapter owning the descriptor.
func (r *Registry) EngineFor(v Voice) (Engine, error) {
	for _, eng := range r.engines {
		if eng.Kind() == v.Engine {
			return eng, nil
		}
	}
	return nil, ErrEngineUnavailable
}

// MarkStale flags the snapshot as outdated, e.g. after a model directory
// changed on disk. The next caller that cares should rescan.
func (r *Registry) MarkStale() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// Stale reports whether the snapshot has been flagged as outdated.
func (r *Registry) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}
