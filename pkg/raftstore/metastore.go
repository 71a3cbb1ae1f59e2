// Package raftstore provides bbolt-backed implementations of the
// external storage contracts pkg/raft declares (MetaStore, Log,
// SnapshotStore), one bucket per concern, JSON-encoded values —
// the same shape cuemby-warren's pkg/storage/boltdb.go uses for its
// domain entities, generalized to raft's three durability surfaces.
package raftstore

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/zhipwang/atomix/pkg/raft"
)

var (
	bucketMeta = []byte("meta")
	bucketLog  = []byte("log")
)

const (
	keyCurrentTerm  = "current_term"
	keyVotedFor     = "voted_for"
	keyConfiguration = "configuration"
)

// MetaStore is a bbolt-backed raft.MetaStore: every write commits in
// its own transaction, so a successful call has already fsynced
// before it returns (bbolt's default Sync behavior), satisfying the
// "stable against a process crash" requirement.
type MetaStore struct {
	db *bolt.DB
}

var _ raft.MetaStore = (*MetaStore)(nil)

func OpenMetaStore(path string) (*MetaStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open metastore: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &MetaStore{db: db}, nil
}

func (s *MetaStore) LoadTerm() (raft.Term, error) {
	var term raft.Term
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(keyCurrentTerm))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &term)
	})
	return term, err
}

func (s *MetaStore) StoreTerm(t raft.Term) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(keyCurrentTerm), data)
	})
}

func (s *MetaStore) LoadVote() (raft.MemberID, error) {
	var vote raft.MemberID
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(keyVotedFor))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &vote)
	})
	return vote, err
}

func (s *MetaStore) StoreVote(id raft.MemberID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(id)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(keyVotedFor), data)
	})
}

func (s *MetaStore) LoadConfiguration() (raft.Configuration, bool, error) {
	var cfg raft.Configuration
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(keyConfiguration))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &cfg)
	})
	return cfg, found, err
}

func (s *MetaStore) StoreConfiguration(cfg raft.Configuration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(keyConfiguration), data)
	})
}

func (s *MetaStore) Close() error { return s.db.Close() }

func (s *MetaStore) Delete() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketMeta); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketMeta)
		return err
	})
}
