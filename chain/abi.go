package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const entryPointABIJSON = `[
	{"type":"function","name":"getNonce","stateMutability":"view",
	 "inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],
	 "outputs":[{"name":"nonce","type":"uint256"}]}
]`

const safeABIJSON = `[
	{"type":"function","name":"isModuleEnabled","stateMutability":"view",
	 "inputs":[{"name":"module","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getOwners","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address[]"}]}
]`

const recoveryModuleABIJSON = `[
	{"type":"function","name":"getGuardians","stateMutability":"view",
	 "inputs":[{"name":"wallet","type":"address"}],
	 "outputs":[{"name":"","type":"address[]"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"name","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const proxyFactoryABIJSON = `[
	{"type":"function","name":"proxyCreationCode","stateMutability":"pure",
	 "inputs":[],"outputs":[{"name":"","type":"bytes"}]}
]`

var (
	EntryPointABI     = mustParseABI(entryPointABIJSON)
	SafeABI           = mustParseABI(safeABIJSON)
	RecoveryModuleABI = mustParseABI(recoveryModuleABIJSON)
	ERC20ABI          = mustParseABI(erc20ABIJSON)
	ProxyFactoryABI   = mustParseABI(proxyFactoryABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
