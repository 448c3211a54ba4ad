package badgerdb

import (
	"testing"

	"github.com/celer-network/go-multichain/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	bdb, err := NewDB(t.TempDir())
	require.NoError(t, err)
	defer bdb.Close()

	require.NoError(t, bdb.Set(db.NamespaceAccount, []byte("addr"), []byte{1, 2, 3}))
	value, exists, err := bdb.Get(db.NamespaceAccount, []byte("addr"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte{1, 2, 3}, value)

	_, exists, err = bdb.Get(db.NamespaceCredential, []byte("addr"))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, bdb.Delete(db.NamespaceAccount, []byte("addr")))
	ok, err := bdb.Exist(db.NamespaceAccount, []byte("addr"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkAndIterator(t *testing.T) {
	bdb, err := NewDB(t.TempDir())
	require.NoError(t, err)
	defer bdb.Close()

	bulk := bdb.NewBulk()
	require.NoError(t, bulk.Set(db.NamespaceSessionReport, []byte("b"), []byte("2")))
	require.NoError(t, bulk.Set(db.NamespaceSessionReport, []byte("a"), []byte("1")))
	require.NoError(t, bulk.Set(db.NamespaceAccount, []byte("c"), []byte("3")))
	require.NoError(t, bulk.Flush())

	iter := bdb.Iterator(db.NamespaceSessionReport)
	defer iter.Close()
	var keys, values []string
	for ; iter.Valid(); iter.Next() {
		k, err := iter.Key()
		require.NoError(t, err)
		v, err := iter.Value()
		require.NoError(t, err)
		keys = append(keys, string(k))
		values = append(values, string(v))
	}
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, []string{"1", "2"}, values)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	bdb, err := NewDB(dir)
	require.NoError(t, err)
	require.NoError(t, bdb.Set(db.NamespaceAccount, db.EmptyKey, []byte("x")))
	require.NoError(t, bdb.Close())

	bdb, err = NewDB(dir)
	require.NoError(t, err)
	defer bdb.Close()
	value, exists, err := bdb.Get(db.NamespaceAccount, db.EmptyKey)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("x"), value)
}
