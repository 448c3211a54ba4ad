package badgerdb

import (
	"context"
	"errors"
	"time"

	"github.com/celer-network/go-multichain/db"
	"github.com/celer-network/go-multichain/log"
	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
)

const (
	badgerDbDiscardRatio   = 0.5 // run gc when 50% of samples can be collected
	badgerDbGcInterval     = 10 * time.Minute
	badgerDbGcSize         = 1 << 20 // 1 MB
	badgerValueLogFileSize = 1<<26 - 1
)

var logger *log.Logger

// Enforce database implements interfaces
var _ db.DB = (*DB)(nil)

type DB struct {
	db         *badger.DB
	ctx        context.Context
	cancelFunc context.CancelFunc
	name       string
}

// NewDB opens or creates the database in dir and starts its value log GC loop.
func NewDB(dir string) (*DB, error) {
	if logger == nil {
		logger = log.NewLogger("badgerdb")
	}
	opts := badger.DefaultOptions(dir)
	// local device storage is small; keep memory usage low
	opts.ValueLogLoadingMode = options.FileIO
	opts.TableLoadingMode = options.FileIO
	opts.ValueThreshold = 1024
	opts.ValueLogFileSize = badgerValueLogFileSize
	opts.Logger = &badgerLogger{logger: logger}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	database := &DB{
		db:         bdb,
		ctx:        ctx,
		cancelFunc: cancelFunc,
		name:       dir,
	}
	go database.runBadgerGC()
	return database, nil
}

func (bdb *DB) runBadgerGC() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	lastGcT := time.Now()
	_, lastDbVlogSize := bdb.db.Size()
	for {
		select {
		case <-ticker.C:
			currentLsmSize, currentVlogSize := bdb.db.Size()
			// gc when the interval passed or the value log grows slowly
			if time.Since(lastGcT) <= badgerDbGcInterval && lastDbVlogSize+badgerDbGcSize <= currentVlogSize {
				continue
			}
			startGcT := time.Now()
			logger.Debug().Str("name", bdb.name).Int64("lsmSize", currentLsmSize).Int64("vlogSize", currentVlogSize).Msg("start badger gc")
			err := bdb.db.RunValueLogGC(badgerDbDiscardRatio)
			switch {
			case errors.Is(err, badger.ErrNoRewrite):
				logger.Debug().Str("name", bdb.name).Msg("nothing to gc")
				lastDbVlogSize = currentVlogSize
			case err != nil:
				logger.Error().Str("name", bdb.name).Err(err).Msg("badger gc failed")
				lastDbVlogSize = currentVlogSize
			default:
				afterLsmSize, afterVlogSize := bdb.db.Size()
				logger.Debug().Str("name", bdb.name).Int64("lsmSize", afterLsmSize).Int64("vlogSize", afterVlogSize).
					Dur("takenTime", time.Since(startGcT)).Msg("finished badger gc")
				lastDbVlogSize = afterVlogSize
			}
			lastGcT = time.Now()
		case <-bdb.ctx.Done():
			return
		}
	}
}

func (bdb *DB) Type() string {
	return "badgerdb"
}

func (bdb *DB) Set(namespace []byte, key []byte, value []byte) error {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	value = db.ConvNilToBytes(value)

	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *DB) Delete(namespace []byte, key []byte) error {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *DB) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	var val []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (bdb *DB) Exist(namespace []byte, key []byte) (bool, error) {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	err := bdb.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close stops the gc loop and closes the database.
func (bdb *DB) Close() error {
	bdb.cancelFunc()
	return bdb.db.Close()
}

func (bdb *DB) NewBulk() db.Bulk {
	return &Bulk{
		db:      bdb,
		bulk:    bdb.db.NewWriteBatch(),
		createT: time.Now(),
	}
}
