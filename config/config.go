// Package config loads the chain registry and component settings from viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/celer-network/go-multichain/builder"
	"github.com/celer-network/go-multichain/submitter"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MULTICHAIN"

	KeyAccountAddress        = "account.address"
	KeyAccountEntryPoint     = "account.entryPoint"
	KeyAccountSafeModule     = "account.safeModule"
	KeyAccountMultiSend      = "account.multiSend"
	KeyAccountFactory        = "account.factory"
	KeyAccountFactoryData    = "account.factoryData"
	KeyAccountRecoveryModule = "account.recoveryModule"
	KeyAccountSingleton      = "account.singleton"
	KeyAccountModuleSetup    = "account.moduleSetup"
	KeyAccountFallback       = "account.fallbackHandler"
	KeyAccountSaltNonce      = "account.saltNonce"

	KeyPaymasterEndpoint = "paymaster.endpoint"
	KeyPaymasterPolicyID = "paymaster.sponsorshipPolicyId"

	KeyGasCallGasLimit            = "gas.callGasLimit"
	KeyGasVerificationGasLimit    = "gas.verificationGasLimit"
	KeyGasPreVerificationGas      = "gas.preVerificationGas"
	KeyGasMaxFeePerGas            = "gas.maxFeePerGas"
	KeyGasMaxPriorityFeePerGas    = "gas.maxPriorityFeePerGas"
	KeyGasEstimate                = "gas.estimate"
	KeyGasPreVerificationMultiple = "gas.preVerificationGasMultiplier"
	KeyGasVerificationMultiple    = "gas.verificationGasLimitMultiplier"
	KeyGasValidFor                = "gas.validFor"

	KeySubmitPollInterval     = "submit.pollInterval"
	KeySubmitSendTimeout      = "submit.sendTimeout"
	KeySubmitInclusionTimeout = "submit.inclusionTimeout"

	KeyStorageDir       = "storage.dir"
	KeyRegistryEndpoint = "registry.endpoint"
	KeyCredentialKey    = "credential.keyFile"
	KeyCredentialRPID   = "credential.rpId"

	// Deployed on every supported chain at the same address.
	DefaultEntryPoint = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"
	DefaultSafeModule = "0x75cf11467937ce3F2f357CE24ffc3DBF8fD5c226"
	DefaultMultiSend  = "0x38869bf66a61cF6bDB996A6aE40D5853Fd43B526"
	// Safe v1.4.1 proxy factory and singleton, 4337 module setup v0.3.0.
	DefaultFactory     = "0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67"
	DefaultSingleton   = "0x29fcB43b46531BcA003ddC8FCB67FFE91900C762"
	DefaultModuleSetup = "0x2dd68b007B46fBe91B9A7c3EDa5A7a1063cB5b47"
)

// New returns a viper instance reading env vars as MULTICHAIN_CHAIN1_ID for chain1.id, and
// configFile when given.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := Init(v, configFile); err != nil {
		return nil, err
	}
	return v, nil
}

// Init prepares v for env lookups and defaults, then reads configFile when given.
func Init(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %v: %w", configFile, err, types.ErrConfig)
	}
	return nil
}

func SetDefaults(v *viper.Viper) {
	d := builder.DefaultConfig()
	v.SetDefault(KeyAccountEntryPoint, DefaultEntryPoint)
	v.SetDefault(KeyAccountSafeModule, DefaultSafeModule)
	v.SetDefault(KeyAccountMultiSend, DefaultMultiSend)
	v.SetDefault(KeyAccountSingleton, DefaultSingleton)
	v.SetDefault(KeyAccountModuleSetup, DefaultModuleSetup)
	v.SetDefault(KeyGasCallGasLimit, d.CallGasLimit.Uint64())
	v.SetDefault(KeyGasVerificationGasLimit, d.VerificationGasLimit.Uint64())
	v.SetDefault(KeyGasPreVerificationGas, d.PreVerificationGas.Uint64())
	v.SetDefault(KeyGasPreVerificationMultiple, builder.DefaultGasMultiplier)
	v.SetDefault(KeyGasVerificationMultiple, builder.DefaultGasMultiplier)
	v.SetDefault(KeySubmitPollInterval, submitter.DefaultPollInterval)
	v.SetDefault(KeySubmitSendTimeout, submitter.DefaultSendTimeout)
	v.SetDefault(KeySubmitInclusionTimeout, submitter.DefaultInclusionTimeout)
	v.SetDefault(KeyStorageDir, "multichain_data")
	v.SetDefault(KeyCredentialKey, "passkey.pem")
}

func chainKey(n int, field string) string {
	return fmt.Sprintf("chain%d.%s", n, field)
}

// Load reads chain1, chain2, ... until the first index without an id. Order is kept.
func Load(v *viper.Viper) ([]types.ChainDescriptor, error) {
	var chains []types.ChainDescriptor
	seen := make(map[uint64]bool)
	for n := 1; ; n++ {
		idKey := chainKey(n, "id")
		if !v.IsSet(idKey) || v.GetString(idKey) == "" {
			break
		}
		id, err := parseUint(v.GetString(idKey))
		if err != nil || id == 0 {
			return nil, fmt.Errorf("%s: invalid chain id %q: %w", idKey, v.GetString(idKey), types.ErrConfig)
		}
		desc := types.ChainDescriptor{
			ChainID:           id,
			RPCEndpoint:       v.GetString(chainKey(n, "rpc")),
			BundlerEndpoint:   v.GetString(chainKey(n, "bundler")),
			PaymasterEndpoint: v.GetString(chainKey(n, "paymaster")),
			DisplayName:       v.GetString(chainKey(n, "name")),
			ExplorerBaseURL:   v.GetString(chainKey(n, "explorer")),
		}
		if desc.RPCEndpoint == "" {
			return nil, fmt.Errorf("missing %s: %w", chainKey(n, "rpc"), types.ErrConfig)
		}
		if desc.BundlerEndpoint == "" {
			return nil, fmt.Errorf("missing %s: %w", chainKey(n, "bundler"), types.ErrConfig)
		}
		if seen[id] {
			return nil, fmt.Errorf("%s: duplicate chain id %d: %w", idKey, id, types.ErrConfig)
		}
		seen[id] = true
		chains = append(chains, desc)
	}
	if len(chains) < 2 {
		return nil, fmt.Errorf("at least 2 chains must be configured, found %d: %w", len(chains), types.ErrConfig)
	}
	return chains, nil
}

var (
	registryOnce  sync.Once
	registry      []types.ChainDescriptor
	registryError error
)

// Registry loads the chain registry from the global viper once per process.
func Registry() ([]types.ChainDescriptor, error) {
	registryOnce.Do(func() {
		registry, registryError = Load(viper.GetViper())
	})
	return registry, registryError
}

func parseUint(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return hexutil.DecodeUint64(s)
	}
	return strconv.ParseUint(s, 10, 64)
}

func address(v *viper.Viper, key string, required bool) (common.Address, error) {
	s := v.GetString(key)
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("missing %s: %w", key, types.ErrConfig)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q: %w", key, s, types.ErrConfig)
	}
	return common.HexToAddress(s), nil
}

// Account reads the account address. It is resolved once at startup and passed on.
func Account(v *viper.Viper) (common.Address, error) {
	return address(v, KeyAccountAddress, true)
}
