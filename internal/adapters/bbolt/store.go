// Package bbolt implements the ports.Storage interface using bbolt (embedded B+ tree).
// Each project gets its own top-level bucket. Within that bucket, the "index"
// sub-bucket holds the last built term index and the "docs" sub-bucket holds
// one cached rewrite per document. Writes are transactional; a crash mid-write
// cannot corrupt previously committed data.
package bbolt

import (
	"errors"
	"fmt"
	"time"

	"github.com/corey/autolink/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketIndex = []byte("index")
	bucketDocs  = []byte("docs")
	keyEntries  = []byte("entries")
	keyMeta     = []byte("meta")
)

// Store implements ports.Storage backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// indexMeta is the gob-encoded header stored next to the entry list.
type indexMeta struct {
	Fingerprint string
	BuiltAt     int64
}

// SaveIndex persists the term index for a project.
func (s *Store) SaveIndex(projectID string, snap *ports.IndexSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil index")
	}

	entries, err := encodeEntries(snap.Entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	meta, err := encodeGob(indexMeta{Fingerprint: snap.Fingerprint, BuiltAt: snap.BuiltAt})
	if err != nil {
		return fmt.Errorf("encode index meta: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		proj, err := tx.CreateBucketIfNotExists([]byte(projectID))
		if err != nil {
			return err
		}
		ib, err := proj.CreateBucketIfNotExists(bucketIndex)
		if err != nil {
			return err
		}
		if err := ib.Put(keyEntries, entries); err != nil {
			return err
		}
		return ib.Put(keyMeta, meta)
	})
}

// LoadIndex retrieves the term index for a project.
// Returns nil, nil if no index exists (fresh project).
func (s *Store) LoadIndex(projectID string) (*ports.IndexSnapshot, error) {
	var entriesData, metaData []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		ib := subBucket(tx, projectID, bucketIndex)
		if ib == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		entriesData = copyBytes(ib.Get(keyEntries))
		metaData = copyBytes(ib.Get(keyMeta))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entriesData == nil {
		return nil, nil
	}

	entries, err := decodeEntries(entriesData)
	if err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	snap := &ports.IndexSnapshot{Entries: entries}
	if metaData != nil {
		var meta indexMeta
		if err := decodeGob(metaData, &meta); err != nil {
			return nil, fmt.Errorf("decode index meta: %w", err)
		}
		snap.Fingerprint = meta.Fingerprint
		snap.BuiltAt = meta.BuiltAt
	}
	return snap, nil
}

// GetDocument returns the cached rewrite of one document.
// Returns nil, nil on a cache miss.
func (s *Store) GetDocument(projectID, docID string) (*ports.CachedDocument, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		db := subBucket(tx, projectID, bucketDocs)
		if db == nil {
			return nil
		}
		data = copyBytes(db.Get([]byte(docID)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, nil
	}

	var doc ports.CachedDocument
	if err := decodeGob(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return &doc, nil
}

// PutDocuments stores rewritten documents in one transaction.
func (s *Store) PutDocuments(projectID string, docs []*ports.CachedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	encoded := make([][]byte, len(docs))
	for i, doc := range docs {
		if doc == nil || doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		b, err := encodeGob(doc)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
		encoded[i] = b
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		proj, err := tx.CreateBucketIfNotExists([]byte(projectID))
		if err != nil {
			return err
		}
		db, err := proj.CreateBucketIfNotExists(bucketDocs)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			if err := db.Put([]byte(doc.ID), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteProject removes all data (index + documents) for a project.
// Idempotent: deleting a nonexistent project is not an error.
func (s *Store) DeleteProject(projectID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(projectID)); errors.Is(err, bolt.ErrBucketNotFound) {
			return nil // idempotent
		} else {
			return err
		}
	})
}

func subBucket(tx *bolt.Tx, projectID string, name []byte) *bolt.Bucket {
	proj := tx.Bucket([]byte(projectID))
	if proj == nil {
		return nil
	}
	return proj.Bucket(name)
}

func copyBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
