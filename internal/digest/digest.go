// Package digest computes content identities of artifacts.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Prefix is prepended to every digest.
const Prefix = "sha256:"

type key struct {
	path  string
	size  int64
	mtime time.Time
}

// Cache memoizes file digests by path, size and modification time.
type Cache struct {
	entries *lru.Cache[key, string]
}

func NewCache(size int) *Cache {
	c, err := lru.New[key, string](size)
	if err != nil {
		panic(err)
	}
	return &Cache{entries: c}
}

// File returns the digest of the file at path.
func (c *Cache) File(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("digest %s: not a regular file", path)
	}
	k := key{path: path, size: info.Size(), mtime: info.ModTime()}
	if d, ok := c.entries.Get(k); ok {
		return d, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	d, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	c.entries.Add(k, d)
	return d, nil
}

// Len reports how many digests are memoized.
func (c *Cache) Len() int { return c.entries.Len() }

func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return Prefix + hex.EncodeToString(sum[:])
}
