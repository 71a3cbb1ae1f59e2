package raftstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/zhipwang/atomix/pkg/raft"
)

// BoltLog is a bbolt-backed raft.Log: one key-value pair per entry,
// keyed on its big-endian index so bbolt's native byte-ordered
// iteration doubles as index ordering. No index marker is stored:
// Open reads the first and last keys through a bucket cursor and
// caches them in memory for FirstIndex/LastIndex.
type BoltLog struct {
	db *bolt.DB

	mu    sync.RWMutex
	first raft.Index
	last  raft.Index
}

var _ raft.Log = (*BoltLog)(nil)

func NewBoltLog(path string) (*BoltLog, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLog)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltLog{db: db}, nil
}

func indexKey(index raft.Index) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(index))
	return buf
}

func (l *BoltLog) Open(ctx context.Context) error {
	var first, last raft.Index
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLog).Cursor()
		if k, _ := c.First(); k != nil {
			first = raft.Index(binary.BigEndian.Uint64(k))
		}
		if k, _ := c.Last(); k != nil {
			last = raft.Index(binary.BigEndian.Uint64(k))
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.first, l.last = first, last
	l.mu.Unlock()
	return nil
}

func (l *BoltLog) FirstIndex() raft.Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.first
}

func (l *BoltLog) LastIndex() raft.Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

func (l *BoltLog) Writer() raft.LogWriter { return &boltWriter{log: l} }
func (l *BoltLog) Reader() raft.LogReader { return &boltReader{log: l} }

func (l *BoltLog) Close() error { return l.db.Close() }

func (l *BoltLog) Delete() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketLog); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketLog)
		return err
	})
}

type boltWriter struct {
	log *BoltLog
}

func (w *boltWriter) Append(entry *raft.LogEntry) error {
	err := w.log.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketLog).Put(indexKey(entry.Index), data)
	})
	if err != nil {
		return err
	}
	w.log.mu.Lock()
	if w.log.first == 0 || entry.Index < w.log.first {
		w.log.first = entry.Index
	}
	if entry.Index > w.log.last {
		w.log.last = entry.Index
	}
	w.log.mu.Unlock()
	return nil
}

// Truncate drops every entry at or after from (spec.md §4.3: only a
// follower ever truncates, to drop a conflicting suffix).
func (w *boltWriter) Truncate(from raft.Index) error {
	err := w.log.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		c := b.Cursor()
		for k, _ := c.Seek(indexKey(from)); k != nil; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.log.mu.Lock()
	if from <= w.log.last {
		if from == 0 {
			w.log.last = 0
		} else {
			w.log.last = from - 1
		}
	}
	w.log.mu.Unlock()
	return nil
}

// Commit is a no-op for BoltLog: every Append already fsyncs via
// bbolt's own transaction commit, so there is no separate durability
// barrier to cross. Kept to satisfy raft.LogWriter and to leave a
// seam for a future write-behind log that does need one.
func (w *boltWriter) Commit(index raft.Index) error { return nil }

func (w *boltWriter) LastIndex() raft.Index { return w.log.LastIndex() }

type boltReader struct {
	log     *BoltLog
	current raft.Index
	started bool
}

func (r *boltReader) Seek(index raft.Index) error {
	r.current = index
	r.started = true
	return nil
}

func (r *boltReader) Next() (*raft.LogEntry, error) {
	if !r.started {
		r.current = r.log.FirstIndex()
		r.started = true
	}
	var entry *raft.LogEntry
	err := r.log.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLog).Get(indexKey(r.current))
		if v == nil {
			return nil
		}
		var e raft.LogEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.current++
	return entry, nil
}

func (r *boltReader) Current() raft.Index { return r.current }

func (r *boltReader) HasNext() bool {
	return r.current <= r.log.LastIndex()
}

func (r *boltReader) Reset() error {
	r.current = 0
	r.started = false
	return nil
}

func (r *boltReader) Close() error { return nil }
