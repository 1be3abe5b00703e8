// Package idempotency remembers the responses of mutating API calls by their
// Idempotency-Key, so a retried request replays the first answer instead of
// reaching the gateway twice.
package idempotency

import (
	"encoding/json"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "responses"

var (
	ErrNotFound = errors.New("idempotency key not found")
	// ErrConflict means the key was already used for a different request.
	ErrConflict = errors.New("idempotency key reused with a different request")
)

type Response struct {
	RequestHash string          `json:"request_hash"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Store struct {
	db *bolt.DB
}

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the stored response for key. It fails with ErrConflict when
// the key belongs to a request with a different hash.
func (s *Store) Lookup(key, requestHash string) (*Response, error) {
	var resp Response
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.RequestHash != requestHash {
		return nil, ErrConflict
	}
	return &resp, nil
}

// Save stores resp under key unless the key is already taken, in which case
// the stored response is returned and nothing is written.
func (s *Store) Save(key string, resp *Response) (*Response, bool, error) {
	var result Response
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if existing := b.Get([]byte(key)); existing != nil {
			return json.Unmarshal(existing, &result)
		}

		resp.CreatedAt = time.Now().UTC()
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		result = *resp
		created = true
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return nil, false, err
	}
	return &result, created, nil
}
