// Package history persists previously added download sources in a Bolt
// database so the add prompt can offer them across restarts.
package history

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var urlsBucket = []byte("urls")

// History is a bounded, most-recent-first list of download sources.
type History struct {
	db  *bolt.DB
	max int
}

// Open opens or creates the database at path. At most max entries are kept.
func Open(path string, max int) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(urlsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &History{db: db, max: max}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Add records url as the most recent entry, dropping any previous occurrence
// and trimming the list to its maximum size.
func (h *History) Add(url string) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		urls, err := readAll(tx)
		if err != nil {
			return err
		}
		out := make([]string, 0, len(urls)+1)
		out = append(out, url)
		for _, u := range urls {
			if u != url {
				out = append(out, u)
			}
		}
		if len(out) > h.max {
			out = out[:h.max]
		}
		return writeAll(tx, out)
	})
}

// List returns every entry, most recent first.
func (h *History) List() ([]string, error) {
	var urls []string
	err := h.db.View(func(tx *bolt.Tx) error {
		var err error
		urls, err = readAll(tx)
		return err
	})
	return urls, err
}

// Filter returns up to limit entries containing the given substring,
// case-insensitively, most recent first.
func (h *History) Filter(substr string, limit int) ([]string, error) {
	urls, err := h.List()
	if err != nil {
		return nil, err
	}
	substr = strings.ToLower(substr)
	out := make([]string, 0, limit)
	for _, u := range urls {
		if strings.Contains(strings.ToLower(u), substr) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// The whole list is rewritten on every change; it never holds more than a
// few dozen entries.

func readAll(tx *bolt.Tx) ([]string, error) {
	var urls []string
	c := tx.Bucket(urlsBucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		urls = append(urls, string(v))
	}
	return urls, nil
}

func writeAll(tx *bolt.Tx, urls []string) error {
	if err := tx.DeleteBucket(urlsBucket); err != nil {
		return err
	}
	b, err := tx.CreateBucket(urlsBucket)
	if err != nil {
		return err
	}
	for i, u := range urls {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], uint64(i))
		if err := b.Put(key[:], []byte(u)); err != nil {
			return err
		}
	}
	return nil
}
