package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chboishabba/tircorder-JOBBIE/internal/errors"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// maxRetryAttempts and retry backoff bounds implement spec.md §4.1/§5:
// "retried with exponential backoff (max interval 60s)... bounded attempt
// count (default 5)" and "S lock retry: max 5 attempts with 1s base delay".
const (
	maxRetryAttempts = 5
	retryBaseDelay   = time.Second
	retryMaxDelay    = 60 * time.Second
)

// writeCmd is a unit of work submitted to the single writer goroutine
// (spec.md §4.1 "All writes to S are serialised through a single logical
// writer").
type writeCmd struct {
	fn     func(*gorm.DB) error
	result chan error
}

// Store is the durable State Store (S). Reads may use DB directly
// (concurrent readers are allowed); every mutation must go through
// writeCmds so it is serialized, matching internal/datastore's
// single-writer discipline.
type Store struct {
	DB  *gorm.DB
	log logging.Logger

	writeCh chan writeCmd
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open opens (creating if absent) the SQLite-backed state store at path,
// applies pragmas for write throughput, and starts the writer goroutine.
// Grounded on internal/datastore/sqlite.go's Connect.
func Open(path string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Global()
	}
	log = log.Module("store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Component("store").
			Category(errors.CategorySystem).
			Context("operation", "create_database_directory").
			Context("directory", filepath.Dir(path)).
			Build()
	}

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("store").
			Category(errors.CategoryDatabase).
			Context("operation", "open_sqlite_database").
			Context("db_path", path).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("store").
			Category(errors.CategoryDatabase).
			Context("operation", "get_underlying_sqldb").
			Build()
	}
	sqlDB.SetMaxOpenConns(1) // single-writer discipline; readers share the one connection

	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, execErr := sqlDB.Exec(pragma); execErr != nil {
			log.Warn("failed to set pragma", logging.String("pragma", pragma), logging.Err(execErr))
		}
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, errors.New(err).
			Component("store").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}

	if err := seedExtensions(db); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		DB:      db,
		log:     log,
		writeCh: make(chan writeCmd, 64),
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.runWriter(ctx)

	log.Info("state store opened", logging.String("path", path))
	return s, nil
}

func seedExtensions(db *gorm.DB) error {
	all := append(append([]string{}, AudioExtensions...), TranscriptExtensions...)
	for _, ext := range all {
		if err := db.Where(Extension{Ext: ext}).FirstOrCreate(&Extension{Ext: ext}).Error; err != nil {
			return errors.New(err).
				Component("store").
				Category(errors.CategoryDatabase).
				Context("operation", "seed_extensions").
				Context("extension", ext).
				Build()
		}
	}
	return nil
}

// Close drains the writer goroutine and closes the underlying connection.
func (s *Store) Close() error {
	s.cancel()
	close(s.writeCh)
	s.wg.Wait()
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) runWriter(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-s.writeCh:
			if !ok {
				return
			}
			cmd.result <- s.runWithRetry(cmd.fn)
		}
	}
}

// write submits fn to the single writer goroutine and blocks for its result.
func (s *Store) write(fn func(*gorm.DB) error) error {
	result := make(chan error, 1)
	s.writeCh <- writeCmd{fn: fn, result: result}
	return <-result
}

// runWithRetry retries "database is locked"-style errors with the
// exponential backoff spec.md §4.1/§5 prescribe; any other error surfaces
// immediately as a logical error.
func (s *Store) runWithRetry(fn func(*gorm.DB) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		err := s.DB.Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetriable(err) {
			return err
		}
		lastErr = err
		delay := time.Duration(math.Min(
			float64(retryBaseDelay)*math.Pow(2, float64(attempt)),
			float64(retryMaxDelay),
		))
		s.log.Warn("store busy, retrying",
			logging.Int("attempt", attempt+1),
			logging.Duration("delay", delay),
			logging.Err(err))
		time.Sleep(delay)
	}
	return errors.New(lastErr).
		Component("store").
		Category(errors.CategoryRetry).
		Context("operation", "write_retry_exhausted").
		Build()
}

func isRetriable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
