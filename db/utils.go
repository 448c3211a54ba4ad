package db

var (
	NamespaceAggregateTree = []byte("agt")
	NamespaceAccount       = []byte("acc")
	NamespaceCredential    = []byte("crd")
	NamespaceSessionReport = []byte("ssr")
	EmptyKey               = []byte{}
	Separator              = []byte("|")
)

// PrependNamespace returns namespace ‖ separator ‖ key in a new slice.
func PrependNamespace(namespace []byte, key []byte) []byte {
	if namespace == nil {
		return key
	}
	out := make([]byte, 0, len(namespace)+len(Separator)+len(key))
	out = append(out, namespace...)
	out = append(out, Separator...)
	return append(out, key...)
}

// NamespacePrefix is the prefix shared by every key of namespace.
func NamespacePrefix(namespace []byte) []byte {
	return PrependNamespace(namespace, EmptyKey)
}

func ConvNilToBytes(byteArray []byte) []byte {
	if byteArray == nil {
		return []byte{}
	}
	return byteArray
}
