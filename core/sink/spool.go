package sink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var envelopeBucket = []byte("envelopes")

// spoolKeyLength is an 8 byte enqueue timestamp followed by the 8 byte item key.
const spoolKeyLength = 16

// Spool persists serialized envelopes in BoltDB until they are transmitted.
// Keys sort by enqueue time, so loading preserves queue order and purging
// expired entries is a prefix scan.
type Spool struct {
	db     *bolt.DB
	path   string
	maxAge time.Duration
	logger *zap.Logger
}

type spoolEntry struct {
	key      []byte
	hash     uint64
	queuedAt time.Time
	payload  []byte
}

// OpenSpool opens or creates the spool database at path.
func OpenSpool(path string, maxAge time.Duration, logger *zap.Logger) (*Spool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open spool database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(envelopeBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create spool bucket: %w", err)
	}

	return &Spool{db: db, path: path, maxAge: maxAge, logger: logger}, nil
}

func spoolKey(queuedAt time.Time, hash uint64) []byte {
	key := make([]byte, spoolKeyLength)
	binary.BigEndian.PutUint64(key[:8], uint64(queuedAt.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], hash)
	return key
}

func decodeSpoolKey(key []byte) (time.Time, uint64, bool) {
	if len(key) != spoolKeyLength {
		return time.Time{}, 0, false
	}
	nanos := int64(binary.BigEndian.Uint64(key[:8]))
	return time.Unix(0, nanos), binary.BigEndian.Uint64(key[8:]), true
}

// Put stores a payload and returns the key it was stored under.
func (s *Spool) Put(queuedAt time.Time, hash uint64, payload []byte) ([]byte, error) {
	key := spoolKey(queuedAt, hash)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(envelopeBucket).Put(key, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to spool envelope: %w", err)
	}
	return key, nil
}

// Delete removes entries by key. Missing keys are ignored.
func (s *Spool) Delete(keys ...[]byte) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(envelopeBucket)
		for _, key := range keys {
			if key == nil {
				continue
			}
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete spooled envelopes: %w", err)
	}
	return nil
}

// Load returns every spooled entry in enqueue order. Entries with malformed
// keys are skipped.
func (s *Spool) Load() ([]spoolEntry, error) {
	var entries []spoolEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(envelopeBucket).ForEach(func(k, v []byte) error {
			queuedAt, hash, ok := decodeSpoolKey(k)
			if !ok {
				s.logger.Warn("Skipping malformed spool key", zap.Binary("key", k))
				return nil
			}
			// Slices returned by bolt are only valid inside the transaction
			entries = append(entries, spoolEntry{
				key:      bytes.Clone(k),
				hash:     hash,
				queuedAt: queuedAt,
				payload:  bytes.Clone(v),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load spool: %w", err)
	}
	return entries, nil
}

// Purge deletes entries queued more than maxAge before now and returns how
// many were removed.
func (s *Spool) Purge(now time.Time) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := spoolKey(now.Add(-s.maxAge), 0)

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(envelopeBucket)

		// Collect first, deleting under a live cursor skips keys
		var expired [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) < 0; k, _ = c.Next() {
			expired = append(expired, bytes.Clone(k))
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to purge spool: %w", err)
	}

	if removed > 0 {
		s.logger.Info("Purged expired spool entries",
			zap.Int("removed", removed),
			zap.Duration("max_age", s.maxAge))
	}
	return removed, nil
}

// Len returns the number of spooled entries.
func (s *Spool) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(envelopeBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (s *Spool) Close() error {
	return s.db.Close()
}
