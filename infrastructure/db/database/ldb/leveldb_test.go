package ldb

import (
	"reflect"
	"testing"

	"github.com/pocnet/pocd/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T, testName string) (ldb *LevelDB, teardownFunc func()) {
	path := t.TempDir()
	ldb, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = ldb.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
	}
	return ldb, teardownFunc
}

func TestLevelDBSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestLevelDBSanity")
	defer teardownFunc()

	// Put something into the db
	key := []byte("key")
	putData := []byte("Hello world!")
	err := ldb.Put(key, putData)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Put returned "+
			"unexpected error: %s", err)
	}

	// Get from the key previously put to
	getData, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Get returned "+
			"unexpected error: %s", err)
	}

	// Make sure that the put data and the get data are equal
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestLevelDBSanity: get data and "+
			"put data are not equal. Put: %s, got: %s",
			string(putData), string(getData))
	}

	// Get a key that was never put
	_, err = ldb.Get([]byte("missing"))
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestLevelDBSanity: Get of a missing key "+
			"returned %v instead of ErrNotFound", err)
	}
}

func TestLevelDBTransactionSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestLevelDBTransactionSanity")
	defer teardownFunc()

	// Begin a new transaction
	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Begin "+
			"unexpectedly failed: %s", err)
	}

	// Put something into the transaction
	key := []byte("key")
	putData := []byte("Hello world!")
	err = tx.Put(key, putData)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Put "+
			"returned unexpected error: %s", err)
	}

	// The transaction sees its own write
	getData, err := tx.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Get "+
			"inside the transaction returned unexpected error: %s", err)
	}
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestLevelDBTransactionSanity: pending write is not visible "+
			"within the transaction. Want: %s, got: %s", putData, getData)
	}

	// The database does not see it before commit
	exists, err := ldb.Has(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Has "+
			"returned unexpected error: %s", err)
	}
	if exists {
		t.Fatalf("TestLevelDBTransactionSanity: uncommitted data " +
			"is visible outside the transaction")
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Commit "+
			"returned unexpected error: %s", err)
	}

	getData, err = ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Get "+
			"returned unexpected error: %s", err)
	}
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestLevelDBTransactionSanity: get data and "+
			"put data are not equal. Put: %s, got: %s",
			string(putData), string(getData))
	}

	// Closed transactions refuse further use
	err = tx.Put(key, putData)
	if err == nil {
		t.Fatalf("TestLevelDBTransactionSanity: Put into a " +
			"committed transaction unexpectedly succeeded")
	}
	err = tx.RollbackUnlessClosed()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: RollbackUnlessClosed "+
			"on a committed transaction returned an error: %s", err)
	}
}

func TestLevelDBTransactionRollback(t *testing.T) {
	ldb, err := NewMemoryLevelDB()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: NewMemoryLevelDB "+
			"unexpectedly failed: %s", err)
	}
	defer ldb.Close()

	key := []byte("key")
	err = ldb.Put(key, []byte("original"))
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Put "+
			"returned unexpected error: %s", err)
	}

	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Begin "+
			"unexpectedly failed: %s", err)
	}
	err = tx.Delete(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Delete "+
			"returned unexpected error: %s", err)
	}
	exists, err := tx.Has(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Has "+
			"returned unexpected error: %s", err)
	}
	if exists {
		t.Fatalf("TestLevelDBTransactionRollback: deleted key " +
			"is still visible within the transaction")
	}
	err = tx.Put([]byte("other"), []byte("value"))
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Put "+
			"returned unexpected error: %s", err)
	}

	err = tx.Rollback()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Rollback "+
			"returned unexpected error: %s", err)
	}

	data, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Get "+
			"returned unexpected error: %s", err)
	}
	if string(data) != "original" {
		t.Fatalf("TestLevelDBTransactionRollback: rolled back delete "+
			"was applied. Got: %s", data)
	}
	exists, err = ldb.Has([]byte("other"))
	if err != nil {
		t.Fatalf("TestLevelDBTransactionRollback: Has "+
			"returned unexpected error: %s", err)
	}
	if exists {
		t.Fatalf("TestLevelDBTransactionRollback: rolled back put was applied")
	}
}
