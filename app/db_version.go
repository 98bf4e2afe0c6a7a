package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/infrastructure/db/database/ldb"
)

const (
	currentDatabaseVersion = 1
	databaseDirname        = "db"
	versionFilename        = "version"
)

// openDatabase opens the chain database under dataDir, stamping new
// databases with the current version and refusing ones of another version.
func openDatabase(dataDir string) (*ldb.LevelDB, error) {
	dbPath := filepath.Join(dataDir, databaseDirname)
	versionFileExists, err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := ldb.NewLevelDB(dbPath)
	if err != nil {
		return nil, err
	}

	if !versionFileExists {
		err = createDatabaseVersionFile(dbPath)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// checkDatabaseVersion returns whether dbPath carries a version file. A
// missing file means a new database.
func checkDatabaseVersion(dbPath string) (versionFileExists bool, err error) {
	versionBytes, err := os.ReadFile(filepath.Join(dbPath, versionFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}

	databaseVersion, err := strconv.Atoi(strings.TrimSpace(string(versionBytes)))
	if err != nil {
		return true, errors.Wrapf(err, "malformed database version in %s", dbPath)
	}
	if databaseVersion != currentDatabaseVersion {
		return true, errors.Errorf("Invalid database version %d. Expected version: %d",
			databaseVersion, currentDatabaseVersion)
	}
	return true, nil
}

func createDatabaseVersionFile(dbPath string) error {
	versionString := strconv.Itoa(currentDatabaseVersion)
	err := os.WriteFile(filepath.Join(dbPath, versionFilename), []byte(versionString), 0600)
	return errors.WithStack(err)
}
