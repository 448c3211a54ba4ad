package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IntentKind is the semantic action requested by the user.
type IntentKind string

const (
	IntentTransferValue  IntentKind = "transfer-value"
	IntentAddOwner       IntentKind = "add-owner"
	IntentRemoveOwner    IntentKind = "remove-owner"
	IntentAddGuardian    IntentKind = "add-guardian"
	IntentRemoveGuardian IntentKind = "remove-guardian"
	IntentEnableModule   IntentKind = "enable-module"
)

// Intent is chain-independent: the same intent is built into one operation per chain.
type Intent struct {
	Kind IntentKind `yaml:"kind" json:"kind"`

	// Subject is the owner, guardian or module address, depending on Kind.
	Subject common.Address `yaml:"subject,omitempty" json:"subject,omitempty"`
	// Threshold applies to owner and guardian intents. Zero means 1.
	Threshold uint64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Transfer fields. Token is nil for native value.
	To     common.Address  `yaml:"to,omitempty" json:"to,omitempty"`
	Amount *big.Int        `yaml:"amount,omitempty" json:"amount,omitempty"`
	Token  *common.Address `yaml:"token,omitempty" json:"token,omitempty"`
}

func (i Intent) ThresholdOrDefault() *big.Int {
	if i.Threshold == 0 {
		return big.NewInt(1)
	}
	return new(big.Int).SetUint64(i.Threshold)
}

// Validate checks the intent in isolation, without chain state.
func (i Intent) Validate() error {
	switch i.Kind {
	case IntentAddOwner, IntentRemoveOwner, IntentAddGuardian, IntentRemoveGuardian, IntentEnableModule:
		if i.Subject == (common.Address{}) {
			return fmt.Errorf("%s: missing address: %w", i.Kind, ErrIntent)
		}
	case IntentTransferValue:
		if i.To == (common.Address{}) {
			return fmt.Errorf("%s: missing recipient: %w", i.Kind, ErrIntent)
		}
		if i.Amount == nil || i.Amount.Sign() <= 0 {
			return fmt.Errorf("%s: amount must be positive: %w", i.Kind, ErrIntent)
		}
	default:
		return fmt.Errorf("unknown intent kind %q: %w", i.Kind, ErrIntent)
	}
	return nil
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentTransferValue:
		if i.Token != nil {
			return fmt.Sprintf("%s %s of %s to %s", i.Kind, i.Amount, i.Token.Hex(), i.To.Hex())
		}
		return fmt.Sprintf("%s %s wei to %s", i.Kind, i.Amount, i.To.Hex())
	case IntentAddOwner, IntentRemoveOwner, IntentAddGuardian, IntentRemoveGuardian:
		return fmt.Sprintf("%s %s threshold %s", i.Kind, i.Subject.Hex(), i.ThresholdOrDefault())
	default:
		return fmt.Sprintf("%s %s", i.Kind, i.Subject.Hex())
	}
}
