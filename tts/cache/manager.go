package cache

import (
	"github.com/charmbracelet/log"
)

// Manager combines the tiers: reads hit memory first and promote disk
// hits, writes land in both. It satisfies the session's cache
// interface.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
}

// memoryShare is the fraction of the configured budget held in RAM.
const memoryShare = 10

// NewManager builds a two-tier cache under dir with maxBytes on disk
// and a tenth of that in memory. A zero maxBytes disables the size
// cap on disk.
func NewManager(dir string, maxBytes int64) (*Manager, error) {
	disk, err := NewDiskCache(dir, maxBytes)
	if err != nil {
		return nil, err
	}
	memBytes := maxBytes / memoryShare
	if memBytes <= 0 {
		memBytes = 16 << 20
	}
	return &Manager{
		memory: NewMemoryCache(memBytes),
		disk:   disk,
	}, nil
}

func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, data); err != nil && err != ErrItemTooLarge {
		log.Debug("cache promote failed", "key", key, "error", err)
	}
	return data, true
}

func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return err
	}
	return m.disk.Put(key, value)
}

func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	m.disk.Delete(key)
}

func (m *Manager) Clear() error {
	m.memory.Clear()
	return m.disk.Clear()
}

// Sizes reports bytes held per tier.
func (m *Manager) Sizes() (memory, disk int64) {
	return m.memory.Size(), m.disk.Size()
}
