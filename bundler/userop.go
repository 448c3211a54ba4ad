package bundler

import (
	"math/big"

	"github.com/celer-network/go-multichain/types"
	"github.com/celer-network/go-multichain/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation is the EntryPoint v0.7 user operation as bundlers exchange it over
// JSON-RPC, with factory and paymaster fields unpacked.
type UserOperation struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory,omitempty"`
	FactoryData                   hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

func hexBig(v *big.Int) *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).Set(types.OrZero(v)))
}

func optionalHexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	return hexBig(v)
}

// FromOperation converts op for the wire, carrying signature as given.
func FromOperation(op *types.PendingOperation, signature []byte) *UserOperation {
	uo := &UserOperation{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		CallData:             hexutil.Bytes(common.CopyBytes(op.CallData)),
		CallGasLimit:         hexBig(op.CallGasLimit),
		VerificationGasLimit: hexBig(op.VerificationGasLimit),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBig(op.MaxPriorityFeePerGas),
		Signature:            hexutil.Bytes(common.CopyBytes(signature)),
	}
	if uo.CallData == nil {
		uo.CallData = hexutil.Bytes{}
	}
	if uo.Signature == nil {
		uo.Signature = hexutil.Bytes{}
	}
	if op.Factory != nil {
		f := *op.Factory
		uo.Factory = &f
		uo.FactoryData = hexutil.Bytes(common.CopyBytes(op.FactoryData))
	}
	if op.Paymaster != nil {
		p := *op.Paymaster
		uo.Paymaster = &p
		uo.PaymasterVerificationGasLimit = hexBig(op.PaymasterVerificationGasLimit)
		uo.PaymasterPostOpGasLimit = hexBig(op.PaymasterPostOpGasLimit)
		uo.PaymasterData = hexutil.Bytes(common.CopyBytes(op.PaymasterData))
	}
	return uo
}

// ApplySponsorship copies paymaster fields returned by a sponsor onto op.
func (uo *UserOperation) ApplySponsorship(op *types.PendingOperation) {
	if uo.Paymaster == nil {
		return
	}
	p := *uo.Paymaster
	op.Paymaster = &p
	op.PaymasterVerificationGasLimit = toBig(uo.PaymasterVerificationGasLimit)
	op.PaymasterPostOpGasLimit = toBig(uo.PaymasterPostOpGasLimit)
	op.PaymasterData = common.CopyBytes(uo.PaymasterData)
	if uo.CallGasLimit != nil {
		op.CallGasLimit = toBig(uo.CallGasLimit)
	}
	if uo.VerificationGasLimit != nil {
		op.VerificationGasLimit = toBig(uo.VerificationGasLimit)
	}
	if uo.PreVerificationGas != nil {
		op.PreVerificationGas = toBig(uo.PreVerificationGas)
	}
	if uo.MaxFeePerGas != nil {
		op.MaxFeePerGas = toBig(uo.MaxFeePerGas)
	}
	if uo.MaxPriorityFeePerGas != nil {
		op.MaxPriorityFeePerGas = toBig(uo.MaxPriorityFeePerGas)
	}
}

func toBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v.ToInt())
}

// GasEstimate is the result of eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
	PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit,omitempty"`
}

// UserOperationReceipt is the result of eth_getUserOperationReceipt.
type UserOperationReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// ToReceipt reduces the bundler receipt to the inclusion outcome.
func (r *UserOperationReceipt) ToReceipt() *types.Receipt {
	receipt := &types.Receipt{
		Success:         r.Success,
		TransactionHash: r.Receipt.TransactionHash,
	}
	if !r.Success {
		receipt.FailureReason = utils.DecodeRevertReasonHex(r.Reason)
		if receipt.FailureReason == "" {
			receipt.FailureReason = "execution reverted"
		}
	}
	return receipt
}
