package migrations

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Roma7-7-7/price-notifier/internal/dal/migrations/v1"
	"github.com/Roma7-7-7/price-notifier/internal/dal/migrations/v2"
)

// Migration is one schema step of the bolt database.
type Migration interface {
	Version() int
	Description() string
	Up(db *bbolt.DB) error
}

const migrationsBucket = "migrations"

var registeredMigrations = []Migration{
	v1.New(),
	v2.New(),
}

// RunMigrations applies every registered migration that is not yet recorded in the migrations bucket.
func RunMigrations(db *bbolt.DB, log *slog.Logger) error {
	log = log.With("component", "migrations")

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(migrationsBucket))
		return err
	}); err != nil {
		return fmt.Errorf("ensure migrations bucket: %w", err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(registeredMigrations))
	for _, m := range registeredMigrations {
		if _, ok := applied[m.Version()]; !ok {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version() < pending[j].Version()
	})

	if len(pending) == 0 {
		log.Debug("no pending migrations")
		return nil
	}

	for _, m := range pending {
		log.Info("applying migration", "version", m.Version(), "description", m.Description())

		start := time.Now()
		if err = m.Up(db); err != nil {
			return fmt.Errorf("migration v%d: %w", m.Version(), err)
		}
		if err = recordMigration(db, m.Version()); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version(), err)
		}

		log.Info("migration applied", "version", m.Version(), "duration", time.Since(start))
	}

	return nil
}

func appliedMigrations(db *bbolt.DB) (map[int]time.Time, error) {
	res := make(map[int]time.Time)

	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(migrationsBucket)).ForEach(func(k, v []byte) error {
			var version int
			if _, err := fmt.Sscanf(string(k), "v%d", &version); err != nil {
				return fmt.Errorf("parse version from key %s: %w", k, err)
			}
			at, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return fmt.Errorf("parse timestamp of v%d: %w", version, err)
			}
			res[version] = at
			return nil
		})
	})

	return res, err
}

func recordMigration(db *bbolt.DB, version int) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(migrationsBucket))
		if b == nil {
			return errors.New("migrations bucket not found")
		}
		return b.Put([]byte(fmt.Sprintf("v%d", version)), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}
