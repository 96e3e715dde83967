package dal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Roma7-7-7/price-notifier/internal/dal/migrations"
)

const subscribersBucket = "subscribers"

type BoltDB struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the database file and applies pending migrations.
func OpenBolt(path string, log *slog.Logger) (*BoltDB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second}) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = migrations.RunMigrations(db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	res, err := NewBoltDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return res, nil
}

// NewBoltDB wraps an already migrated database.
func NewBoltDB(db *bbolt.DB) (*BoltDB, error) {
	err := db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(subscribersBucket)) == nil {
			return fmt.Errorf("bucket %s not found, migrations were not applied", subscribersBucket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BoltDB{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *BoltDB) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	added := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(subscribersBucket))
		id := i64tob(chatID)
		if b.Get(id) != nil {
			return nil
		}

		data, err := json.Marshal(Subscriber{ChatID: chatID, CreatedAt: s.now()})
		if err != nil {
			return fmt.Errorf("marshal subscriber for chatID=%d: %w", chatID, err)
		}
		if err = b.Put(id, data); err != nil {
			return fmt.Errorf("put subscriber for chatID=%d: %w", chatID, err)
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: add subscriber: %w", ErrUnavailable, err)
	}

	return added, nil
}

func (s *BoltDB) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	removed := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(subscribersBucket))
		id := i64tob(chatID)
		if b.Get(id) == nil {
			return nil
		}
		if err := b.Delete(id); err != nil {
			return fmt.Errorf("delete subscriber with chatID=%d: %w", chatID, err)
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: remove subscriber: %w", ErrUnavailable, err)
	}

	return removed, nil
}

func (s *BoltDB) ExistsSubscriber(_ context.Context, chatID int64) (bool, error) {
	res := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		res = tx.Bucket([]byte(subscribersBucket)).Get(i64tob(chatID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: check subscriber: %w", ErrUnavailable, err)
	}

	return res, nil
}

func (s *BoltDB) ListSubscribers(_ context.Context) ([]Subscriber, error) {
	var res []Subscriber

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(subscribersBucket)).ForEach(func(k, v []byte) error {
			var sub Subscriber
			if err := json.Unmarshal(v, &sub); err != nil {
				return fmt.Errorf("unmarshal subscriber %s: %w", k, err)
			}
			res = append(res, sub)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list subscribers: %w", ErrUnavailable, err)
	}

	return res, nil
}

func (s *BoltDB) Ping(_ context.Context) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(subscribersBucket)) == nil {
			return errors.New("subscribers bucket is missing")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *BoltDB) Close() error {
	return s.db.Close()
}

func i64tob(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}
