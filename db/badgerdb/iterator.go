package badgerdb

import (
	"errors"

	"github.com/celer-network/go-multichain/db"
	"github.com/dgraph-io/badger/v2"
)

type Iterator struct {
	prefix []byte
	txn    *badger.Txn
	iter   *badger.Iterator
}

// Iterator opens a read-only transaction over namespace. Callers must Close it.
func (bdb *DB) Iterator(namespace []byte) db.Iterator {
	prefix := db.NamespacePrefix(namespace)
	txn := bdb.db.NewTransaction(false)

	opt := badger.DefaultIteratorOptions
	opt.Prefix = prefix
	iter := txn.NewIterator(opt)
	iter.Seek(prefix)

	return &Iterator{
		prefix: prefix,
		txn:    txn,
		iter:   iter,
	}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errors.New("iterator is invalid")
	}
	iter.iter.Next()
	return nil
}

func (iter *Iterator) Valid() bool {
	return iter.iter.ValidForPrefix(iter.prefix)
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errors.New("iterator is invalid")
	}
	return iter.iter.Item().KeyCopy(nil)[len(iter.prefix):], nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errors.New("iterator is invalid")
	}
	return iter.iter.Item().ValueCopy(nil)
}

func (iter *Iterator) Close() {
	iter.iter.Close()
	iter.txn.Discard()
}
