package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainDescriptor describes one configured target chain.
type ChainDescriptor struct {
	ChainID           uint64 `yaml:"chainId" json:"chainId"`
	RPCEndpoint       string `yaml:"rpc" json:"rpc"`
	BundlerEndpoint   string `yaml:"bundler" json:"bundler"`
	PaymasterEndpoint string `yaml:"paymaster,omitempty" json:"paymaster,omitempty"`
	DisplayName       string `yaml:"name,omitempty" json:"name,omitempty"`
	ExplorerBaseURL   string `yaml:"explorer,omitempty" json:"explorer,omitempty"`
}

// Name returns the display name, or a generic label when none was configured.
func (c ChainDescriptor) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return fmt.Sprintf("chain-%d", c.ChainID)
}

// TxURL links a transaction on the chain's explorer. Empty when no explorer is configured.
func (c ChainDescriptor) TxURL(txHash common.Hash) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.ExplorerBaseURL, "/") + "/tx/" + txHash.Hex()
}

// AddressURL links an account on the chain's explorer. Empty when no explorer is configured.
func (c ChainDescriptor) AddressURL(account common.Address) string {
	if c.ExplorerBaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.ExplorerBaseURL, "/") + "/address/" + account.Hex()
}

// BigChainID is the chain id as used in EIP-712 domains.
func (c ChainDescriptor) BigChainID() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// PublicKey is the P-256 public key of the signing credential.
type PublicKey struct {
	X *big.Int `json:"x"`
	Y *big.Int `json:"y"`
}

func (k PublicKey) IsZero() bool {
	return k.X == nil || k.Y == nil || (k.X.Sign() == 0 && k.Y.Sign() == 0)
}

func (k PublicKey) Equal(other PublicKey) bool {
	return OrZero(k.X).Cmp(OrZero(other.X)) == 0 && OrZero(k.Y).Cmp(OrZero(other.Y)) == 0
}
