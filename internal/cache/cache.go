// Package cache implements a durable key-value store shared by every
// slopguard process on the machine. Values are JSON documents addressed
// by a digest of their logical key, so two unrelated invocations reuse
// each other's registry lookups.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// TTLShort covers live registry metadata.
	TTLShort = 24 * time.Hour
	// TTLLong covers version lists, dependents counts, and repo facts.
	TTLLong = 7 * 24 * time.Hour
	// TTLOwnership covers the ownership-change detector's last-seen state.
	TTLOwnership = 30 * 24 * time.Hour

	hotTierSize   = 1000
	lockStaleness = 10 * time.Second
)

// Cache is a two-level store: a bounded in-memory hot tier over hashed
// file paths on disk. Disk writes are atomic; readers never see torn data.
type Cache struct {
	dir string
	hot *lru.Cache[string, memEntry]
	now func() time.Time
}

type memEntry struct {
	val []byte
	ts  time.Time
}

type diskEntry struct {
	Val json.RawMessage `json:"val"`
	TS  int64           `json:"ts"`
	TTL int64           `json:"ttl"`
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "slopguard-cache")
	}
	return filepath.Join(home, ".slopguard", "cache")
}

// New opens (creating if needed) a cache rooted at dir.
func New(dir string) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	hot, err := lru.New[string, memEntry](hotTierSize)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, hot: hot, now: time.Now}, nil
}

// path maps a logical key to its storage path: two two-character digest
// segments bound directory fan-out, then the full digest as filename.
// This derivation is a durable format shared across processes.
func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, digest[0:2], digest[2:4], digest+".cache")
}

// Get loads key into dest if a value exists and is younger than ttl.
func (c *Cache) Get(key string, ttl time.Duration, dest any) bool {
	if e, ok := c.hot.Get(key); ok {
		if c.now().Sub(e.ts) < ttl {
			return json.Unmarshal(e.val, dest) == nil
		}
		c.hot.Remove(key)
	}

	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = os.Remove(path)
		return false
	}

	ts := time.Unix(entry.TS, 0)
	if c.now().Sub(ts) >= ttl {
		_ = os.Remove(path)
		return false
	}

	if err := json.Unmarshal(entry.Val, dest); err != nil {
		_ = os.Remove(path)
		return false
	}
	c.hot.Add(key, memEntry{val: entry.Val, ts: ts})
	return true
}

// Set stores val under key. The entry is staged to a temporary sibling
// and renamed into place; concurrent writers to the same key serialize
// on an exclusive-create lock file.
func (c *Cache) Set(key string, val any, ttl time.Duration) error {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	unlock, ok := c.lock(path)
	if !ok {
		// Another process is installing this key right now; its value is
		// as fresh as ours.
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		c.hot.Add(key, memEntry{val: raw, ts: c.now()})
		return nil
	}
	defer unlock()

	return c.setLocked(key, path, val, ttl)
}

// Fetch returns the cached value for key, or computes and stores it.
// When another writer holds the key's lock, Fetch briefly retries reads
// before computing, so a stampede costs one upstream call.
func (c *Cache) Fetch(key string, ttl time.Duration, dest any, produce func() (any, error)) error {
	if c.Get(key, ttl, dest) {
		return nil
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	unlock, ok := c.lock(path)
	if !ok {
		for i := 0; i < 5; i++ {
			time.Sleep(50 * time.Millisecond)
			if c.Get(key, ttl, dest) {
				return nil
			}
		}
		// The other writer is slow or died; compute without storing.
		val, err := produce()
		if err != nil {
			return err
		}
		return reencode(val, dest)
	}

	val, err := func() (any, error) {
		defer unlock()
		val, err := produce()
		if err != nil || val == nil {
			return val, err
		}
		return val, c.setLocked(key, path, val, ttl)
	}()
	if err != nil {
		return err
	}
	if val == nil {
		return errors.New("cache: producer returned nothing")
	}
	return reencode(val, dest)
}

// setLocked writes an entry while the caller already holds the key lock.
func (c *Cache) setLocked(key, path string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	now := c.now()
	entry, err := json.Marshal(diskEntry{Val: raw, TS: now.Unix(), TTL: int64(ttl.Seconds())})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entry); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	c.hot.Add(key, memEntry{val: raw, ts: now})
	return nil
}

// lock acquires an exclusive per-key lock file. Returns ok=false when a
// live contender holds it. Locks older than lockStaleness are reclaimed.
func (c *Cache) lock(path string) (unlock func(), ok bool) {
	lockPath := path + ".lock"

	for i := 0; i < 2; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, true
		}

		info, statErr := os.Stat(lockPath)
		if statErr != nil {
			continue // contender released between attempts
		}
		if c.now().Sub(info.ModTime()) > lockStaleness {
			_ = os.Remove(lockPath)
			continue
		}
		break
	}
	return nil, false
}

func reencode(val, dest any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
