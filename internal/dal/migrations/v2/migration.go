package v2

import (
	"go.etcd.io/bbolt"
)

// MigrationV2 creates the subscribers bucket. Keys are decimal chat IDs, values are JSON
// documents with the chat ID and the subscription timestamp.
type MigrationV2 struct{}

func New() *MigrationV2 {
	return &MigrationV2{}
}

func (m *MigrationV2) Version() int {
	return 2 //nolint:mnd // version 2
}

func (m *MigrationV2) Description() string {
	return "Create subscribers bucket"
}

func (m *MigrationV2) Up(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("subscribers"))
		return err
	})
}
