package db

// DB is the key-value contract used for local device storage and the aggregate tree.
type DB interface {
	Type() string
	Set(namespace []byte, key []byte, value []byte) error
	Delete(namespace []byte, key []byte) error
	Get(namespace []byte, key []byte) ([]byte, bool, error)
	Exist(namespace []byte, key []byte) (bool, error)
	// Iterator walks every key of namespace in ascending order. Keys are returned
	// without the namespace prefix.
	Iterator(namespace []byte) Iterator
	NewBulk() Bulk
	Close() error
}

// Bulk batches writes and applies them on Flush
type Bulk interface {
	Set(namespace []byte, key []byte, value []byte) error
	Delete(namespace []byte, key []byte) error
	Flush() error
	DiscardLast()
}

// Iterator is used to navigate the keys of one namespace
type Iterator interface {
	Next() error
	Valid() bool
	Key() ([]byte, error)
	Value() ([]byte, error)
	Close()
}
