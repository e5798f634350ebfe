package runlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds each Store implementation for the shared
// contract tests.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		store, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	},
}

func sampleRecord(runID string, created time.Time) Record {
	return Record{
		RunID:       runID,
		Persona:     "advisor",
		Query:       "should I refinance?",
		Status:      "completed",
		Attempts:    2,
		CreatedAt:   created,
		StartedAt:   created.Add(time.Millisecond),
		CompletedAt: created.Add(time.Second),
	}
}

// TestStore_SaveAndLoad tests round-tripping a record.
func TestStore_SaveAndLoad(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
			rec := sampleRecord("run-1", created)
			require.NoError(t, store.Save(rec))

			got, err := store.Load("run-1")
			require.NoError(t, err)
			assert.Equal(t, rec.RunID, got.RunID)
			assert.Equal(t, rec.Persona, got.Persona)
			assert.Equal(t, rec.Query, got.Query)
			assert.Equal(t, rec.Status, got.Status)
			assert.Equal(t, rec.Attempts, got.Attempts)
			assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
			assert.True(t, got.CompletedAt.Equal(rec.CompletedAt))
		})
	}
}

// TestStore_SaveUpdatesExisting tests that re-saving a run overwrites it.
func TestStore_SaveUpdatesExisting(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			rec := sampleRecord("run-1", time.Now().UTC())
			rec.Status = "running"
			require.NoError(t, store.Save(rec))

			rec.Status = "failed"
			rec.ErrKind = "transient_inference"
			rec.ErrMessage = "overloaded"
			require.NoError(t, store.Save(rec))

			got, err := store.Load("run-1")
			require.NoError(t, err)
			assert.Equal(t, "failed", got.Status)
			assert.Equal(t, "transient_inference", got.ErrKind)
			assert.Equal(t, "overloaded", got.ErrMessage)
		})
	}
}

// TestStore_LoadMissing tests the not-found sentinel.
func TestStore_LoadMissing(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			_, err := store.Load("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestStore_List tests newest-first ordering and the limit.
func TestStore_List(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.Save(sampleRecord("run-old", base)))
			require.NoError(t, store.Save(sampleRecord("run-mid", base.Add(time.Minute))))
			require.NoError(t, store.Save(sampleRecord("run-new", base.Add(2*time.Minute))))

			recs, err := store.List(0)
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.Equal(t, "run-new", recs[0].RunID)
			assert.Equal(t, "run-old", recs[2].RunID)

			limited, err := store.List(2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, "run-new", limited[0].RunID)
		})
	}
}

// TestStore_Delete tests record removal.
func TestStore_Delete(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			require.NoError(t, store.Save(sampleRecord("run-1", time.Now().UTC())))
			require.NoError(t, store.Delete("run-1"))

			_, err := store.Load("run-1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing record is not an error.
			assert.NoError(t, store.Delete("run-1"))
		})
	}
}

// TestStore_ClosedRejectsOperations tests the closed-store guard.
func TestStore_ClosedRejectsOperations(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.Save(sampleRecord("run-1", time.Now())), ErrStoreClosed)
			_, err := store.Load("run-1")
			assert.ErrorIs(t, err, ErrStoreClosed)
			_, err = store.List(0)
			assert.ErrorIs(t, err, ErrStoreClosed)
			assert.ErrorIs(t, store.Delete("run-1"), ErrStoreClosed)
		})
	}
}

// TestMemoryStore_Len tests the record count helper.
func TestMemoryStore_Len(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save(sampleRecord("run-1", time.Now())))
	require.NoError(t, store.Save(sampleRecord("run-2", time.Now())))
	assert.Equal(t, 2, store.Len())
}

// TestSQLiteStore_PersistsAcrossHandles tests file durability.
func TestSQLiteStore_PersistsAcrossHandles(t *testing.T) {
	path := t.TempDir() + "/runs.db"

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleRecord("run-1", time.Now().UTC())))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, "advisor", got.Persona)
}
