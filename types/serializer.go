package types

import "github.com/ethereum/go-ethereum/accounts/abi"

// Serializer holds the ABI argument lists used to encode calls, EIP-712 structs and
// expanded signatures.
type Serializer struct {
	typeRegistry               *typeRegistry
	safeOpArguments            abi.Arguments
	domainArguments            abi.Arguments
	expandedSignatureArguments abi.Arguments
	methods                    map[string]*method
}

func NewSerializer() (*Serializer, error) {
	typeRegistry, err := newTypeRegistry()
	if err != nil {
		return nil, err
	}
	return &Serializer{
		typeRegistry:               typeRegistry,
		safeOpArguments:            createSafeOpArguments(typeRegistry),
		domainArguments:            createDomainArguments(typeRegistry),
		expandedSignatureArguments: createExpandedSignatureArguments(typeRegistry),
		methods:                    createMethods(typeRegistry),
	}, nil
}

// MustNewSerializer is NewSerializer for package-level initialization.
func MustNewSerializer() *Serializer {
	s, err := NewSerializer()
	if err != nil {
		panic(err)
	}
	return s
}
