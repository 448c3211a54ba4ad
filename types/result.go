package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ChainStatus string

const (
	ChainStatusUnset     ChainStatus = "unset"
	ChainStatusPending   ChainStatus = "pending"
	ChainStatusConfirmed ChainStatus = "confirmed"
	ChainStatusFailed    ChainStatus = "failed"
)

func (s ChainStatus) Terminal() bool {
	return s == ChainStatusConfirmed || s == ChainStatusFailed
}

// ChainResult is the outcome of one chain in a session. It moves only
// unset -> pending -> confirmed|failed, or unset -> failed when submission is rejected.
type ChainResult struct {
	ChainID         uint64       `yaml:"chainId" json:"chainId"`
	Status          ChainStatus  `yaml:"status" json:"status"`
	OperationHash   *common.Hash `yaml:"operationHash,omitempty" json:"operationHash,omitempty"`
	TransactionHash *common.Hash `yaml:"transactionHash,omitempty" json:"transactionHash,omitempty"`
	ErrorKind       ErrorKind    `yaml:"errorKind,omitempty" json:"errorKind,omitempty"`
	Reason          string       `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// CanTransition reports whether the result may move to next.
func (r ChainResult) CanTransition(next ChainStatus) bool {
	switch r.Status {
	case ChainStatusUnset, "":
		return next == ChainStatusPending || next.Terminal()
	case ChainStatusPending:
		return next.Terminal()
	default:
		return false
	}
}

// Receipt is what a bundler reports once an operation is included.
type Receipt struct {
	Success         bool
	TransactionHash common.Hash
	FailureReason   string
}

// InclusionProof proves one leaf of the aggregate tree. Siblings are ordered from the leaf up.
type InclusionProof struct {
	Index    uint64
	Depth    uint8
	Siblings []common.Hash
}

// SessionReport is the settled outcome of one session.
type SessionReport struct {
	SessionID string         `yaml:"sessionId" json:"sessionId"`
	Account   common.Address `yaml:"account" json:"account"`
	Intent    Intent         `yaml:"intent" json:"intent"`
	Root      common.Hash    `yaml:"root" json:"root"`
	Results   []ChainResult  `yaml:"results" json:"results"`
	StartedAt time.Time      `yaml:"startedAt" json:"startedAt"`
	SettledAt time.Time      `yaml:"settledAt" json:"settledAt"`
}

// Confirmed counts chains that confirmed.
func (r *SessionReport) Confirmed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == ChainStatusConfirmed {
			n++
		}
	}
	return n
}
