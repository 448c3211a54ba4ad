package memorydb

import (
	"bytes"
	"errors"
	"sort"

	"github.com/celer-network/go-multichain/db"
)

type Iterator struct {
	prefix []byte
	keys   []string
	values [][]byte
	cursor int
}

// Iterator snapshots the namespace at call time.
func (mdb *DB) Iterator(namespace []byte) db.Iterator {
	mdb.lock.Lock()
	defer mdb.lock.Unlock()

	prefix := db.NamespacePrefix(namespace)
	var keys sort.StringSlice
	for key := range mdb.db {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = append([]byte{}, mdb.db[key]...)
	}

	return &Iterator{
		prefix: prefix,
		keys:   keys,
		values: values,
	}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errors.New("iterator is invalid")
	}
	iter.cursor++
	return nil
}

func (iter *Iterator) Valid() bool {
	return 0 <= iter.cursor && iter.cursor < len(iter.keys)
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errors.New("iterator is invalid")
	}
	return []byte(iter.keys[iter.cursor][len(iter.prefix):]), nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errors.New("iterator is invalid")
	}
	return iter.values[iter.cursor], nil
}

func (iter *Iterator) Close() {
	iter.cursor = len(iter.keys)
}
