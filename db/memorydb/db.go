package memorydb

import (
	"container/list"
	"sync"

	"github.com/celer-network/go-multichain/db"
)

func NewDB() *DB {
	return &DB{
		db: make(map[string][]byte),
	}
}

// Enforce database implements interfaces
var _ db.DB = (*DB)(nil)

type DB struct {
	lock sync.Mutex
	db   map[string][]byte
}

func (mdb *DB) Type() string {
	return "memorydb"
}

func (mdb *DB) Set(namespace []byte, key []byte, value []byte) error {
	mdb.lock.Lock()
	defer mdb.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	value = append([]byte{}, value...)

	mdb.db[string(key)] = value
	return nil
}

func (mdb *DB) Delete(namespace []byte, key []byte) error {
	mdb.lock.Lock()
	defer mdb.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	delete(mdb.db, string(key))
	return nil
}

func (mdb *DB) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	mdb.lock.Lock()
	defer mdb.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	value, exists := mdb.db[string(key)]
	if !exists {
		return nil, false, nil
	}
	return append([]byte{}, value...), true, nil
}

func (mdb *DB) Exist(namespace []byte, key []byte) (bool, error) {
	mdb.lock.Lock()
	defer mdb.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	_, exists := mdb.db[string(key)]
	return exists, nil
}

func (mdb *DB) Close() error {
	return nil
}

func (mdb *DB) NewBulk() db.Bulk {
	return &Bulk{
		db:     mdb,
		opList: list.New(),
	}
}
