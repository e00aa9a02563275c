package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

// diskExt marks cache entries on disk. Keys are already hex digests,
// so the key itself is a safe file name.
const diskExt = ".zst"

// DiskCache is the persistent L2 tier. Entries are zstd-compressed
// files in a flat directory; the oldest files go first when the tier
// runs over capacity.
type DiskCache struct {
	dir      string
	capacity int64

	mu      sync.Mutex
	size    int64
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewDiskCache(dir string, capacity int64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  encoder,
		decoder:  decoder,
	}
	dc.size = dc.scanSize()
	return dc, nil
}

func (dc *DiskCache) path(key string) string {
	return filepath.Join(dc.dir, key+diskExt)
}

func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, err := os.ReadFile(dc.path(key))
	if err != nil {
		return nil, false
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		// Corrupt entry, drop it.
		log.Debug("cache entry corrupt", "key", key, "error", err)
		os.Remove(dc.path(key))
		dc.size -= int64(len(data))
		return nil, false
	}
	// Touch so eviction treats it as fresh.
	now := time.Now()
	os.Chtimes(dc.path(key), now, now)
	return out, true
}

func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	compressed := dc.encoder.EncodeAll(value, nil)
	size := int64(len(compressed))
	if dc.capacity > 0 && size > dc.capacity {
		return ErrItemTooLarge
	}

	path := dc.path(key)
	if old, err := os.Stat(path); err == nil {
		dc.size -= old.Size()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	dc.size += size

	if dc.capacity > 0 && dc.size > dc.capacity {
		dc.evict()
	}
	return nil
}

func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	path := dc.path(key)
	if info, err := os.Stat(path); err == nil {
		dc.size -= info.Size()
	}
	os.Remove(path)
}

func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), diskExt) {
			os.Remove(filepath.Join(dc.dir, e.Name()))
		}
	}
	dc.size = 0
	return nil
}

// Size reports compressed bytes on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// evict removes the oldest entries until the tier fits. Caller holds
// the lock.
func (dc *DiskCache) evict() {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return
	}

	type fileAge struct {
		path string
		size int64
		mod  time.Time
	}
	var files []fileAge
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileAge{
			path: filepath.Join(dc.dir, e.Name()),
			size: info.Size(),
			mod:  info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	for _, f := range files {
		if dc.size <= dc.capacity {
			return
		}
		if err := os.Remove(f.path); err == nil {
			dc.size -= f.size
			log.Debug("cache entry evicted", "path", filepath.Base(f.path), "size", f.size)
		}
	}
}

func (dc *DiskCache) scanSize() int64 {
	var total int64
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}
