// Package badger provides a durable, disk-based EnvelopeStore over Badger.
package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/merklekit/merkle-engine-go/pkg/persistence"
)

// Key namespacing inside the database.
const (
	keyPrefixEnvelope    = "envelope:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a production-ready envelope store using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.EnvelopeStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the database at dataPath with
// SyncWrites enabled for durability and starts a background value-log GC
// goroutine.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger envelope store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version key.
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) != currentSchemaVersion {
				return fmt.Errorf("unsupported schema version %q (want %q)", val, currentSchemaVersion)
			}
			return nil
		})
	})
}

// runGC runs Badger value-log garbage collection periodically until the
// store is closed.
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := b.db.RunValueLogGC(0.5); err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger value log GC failed", "error", err)
			}
		}
	}
}

func envelopeKey(name string) []byte {
	return []byte(keyPrefixEnvelope + name)
}

// SaveEnvelope stores the serialized envelope under name.
func (b *BadgerStore) SaveEnvelope(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("envelope name cannot be empty")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("envelope store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(envelopeKey(name), data)
	})
}

// LoadEnvelope retrieves the envelope stored under name, or nil if unknown.
func (b *BadgerStore) LoadEnvelope(name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(envelopeKey(name))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load envelope %q: %w", name, err)
	}
	return data, nil
}

// ListEnvelopes returns all stored names sorted ascending.
func (b *BadgerStore) ListEnvelopes() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("envelope store is closed")
	}

	var names []string
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefixEnvelope)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, keyPrefixEnvelope))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// DeleteEnvelope removes the envelope stored under name. Idempotent.
func (b *BadgerStore) DeleteEnvelope(name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("envelope store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(envelopeKey(name))
	})
}

// Close stops the GC goroutine and closes the database. Idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database accepts reads.
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("envelope store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version key missing")
		}
		return err
	})
}
