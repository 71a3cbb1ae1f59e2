package raftstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/zhipwang/atomix/pkg/raft"
)

var bucketSnapshots = []byte("snapshots")

// FileSnapshotStore keeps snapshot index/term/current-pointer metadata
// in bbolt (same bucket-per-concern pattern as MetaStore/BoltLog) but
// writes snapshot bytes themselves to a plain file per ID — snapshots
// are large and streamed in chunks, which bbolt's single-writer
// transaction model tolerates poorly.
type FileSnapshotStore struct {
	db  *bolt.DB
	dir string

	mu      sync.Mutex
	writers map[string]*fileSnapshotWriter
}

var _ raft.SnapshotStore = (*FileSnapshotStore)(nil)

type snapshotRecord struct {
	ID      string
	Index   raft.Index
	Term    raft.Term
	Current bool
}

func OpenFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "snapshots.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &FileSnapshotStore{db: db, dir: dir, writers: make(map[string]*fileSnapshotWriter)}, nil
}

func (s *FileSnapshotStore) dataPath(id string) string {
	return filepath.Join(s.dir, id+".snap")
}

func (s *FileSnapshotStore) Create(index raft.Index, term raft.Term, id string) (raft.SnapshotWriter, error) {
	f, err := os.Create(s.dataPath(id))
	if err != nil {
		return nil, err
	}
	w := &fileSnapshotWriter{store: s, file: f, record: snapshotRecord{ID: id, Index: index, Term: term}}
	s.mu.Lock()
	s.writers[id] = w
	s.mu.Unlock()
	return w, nil
}

func (s *FileSnapshotStore) putRecord(rec snapshotRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if rec.Current {
			// Only one snapshot is current at a time.
			if err := b.ForEach(func(k, v []byte) error {
				var existing snapshotRecord
				if err := json.Unmarshal(v, &existing); err != nil {
					return err
				}
				if existing.Current && existing.ID != rec.ID {
					existing.Current = false
					data, err := json.Marshal(existing)
					if err != nil {
						return err
					}
					return b.Put(k, data)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

func (s *FileSnapshotStore) GetByIndex(index raft.Index) (raft.Snapshot, bool, error) {
	var found raft.Snapshot
	ok := false
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			var rec snapshotRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Index == index {
				found = raft.Snapshot{ID: rec.ID, Index: rec.Index, Term: rec.Term}
				ok = true
			}
			return nil
		})
	})
	return found, ok, err
}

func (s *FileSnapshotStore) GetCurrent() (raft.Snapshot, bool, error) {
	var found raft.Snapshot
	ok := false
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			var rec snapshotRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Current {
				found = raft.Snapshot{ID: rec.ID, Index: rec.Index, Term: rec.Term}
				ok = true
			}
			return nil
		})
	})
	return found, ok, err
}

func (s *FileSnapshotStore) OpenReader(id string) (raft.SnapshotReader, error) {
	f, err := os.Open(s.dataPath(id))
	if err != nil {
		return nil, err
	}
	var rec snapshotRecord
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("snapshot %s not found", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSnapshotReader{file: f, snap: raft.Snapshot{ID: rec.ID, Index: rec.Index, Term: rec.Term}}, nil
}

func (s *FileSnapshotStore) Close() error { return s.db.Close() }

func (s *FileSnapshotStore) Delete(id string) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(id))
	}); err != nil {
		return err
	}
	err := os.Remove(s.dataPath(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type fileSnapshotWriter struct {
	store  *FileSnapshotStore
	file   *os.File
	record snapshotRecord
}

func (w *fileSnapshotWriter) Write(p []byte) (int, error) { return w.file.Write(p) }

func (w *fileSnapshotWriter) Commit() error {
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	w.record.Current = true
	w.store.mu.Lock()
	delete(w.store.writers, w.record.ID)
	w.store.mu.Unlock()
	return w.store.putRecord(w.record)
}

func (w *fileSnapshotWriter) Cancel() error {
	w.file.Close()
	w.store.mu.Lock()
	delete(w.store.writers, w.record.ID)
	w.store.mu.Unlock()
	return os.Remove(w.file.Name())
}

type fileSnapshotReader struct {
	file *os.File
	snap raft.Snapshot
}

func (r *fileSnapshotReader) Read(p []byte) (int, error) { return r.file.Read(p) }
func (r *fileSnapshotReader) Close() error                { return r.file.Close() }
func (r *fileSnapshotReader) Snapshot() raft.Snapshot      { return r.snap }
