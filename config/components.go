package config

import (
	"fmt"
	"math/big"

	"github.com/celer-network/go-multichain/account"
	"github.com/celer-network/go-multichain/builder"
	"github.com/celer-network/go-multichain/submitter"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
)

func bigOrNil(v *viper.Viper, key string) (*big.Int, error) {
	s := v.GetString(key)
	if s == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", key, s, types.ErrConfig)
	}
	return n, nil
}

// LoadBuilderConfig reads the account contracts and gas settings.
func LoadBuilderConfig(v *viper.Viper, chainCount int) (builder.Config, error) {
	cfg := builder.DefaultConfig()
	var err error
	if cfg.EntryPoint, err = address(v, KeyAccountEntryPoint, true); err != nil {
		return cfg, err
	}
	if cfg.SafeModule, err = address(v, KeyAccountSafeModule, true); err != nil {
		return cfg, err
	}
	if cfg.MultiSend, err = address(v, KeyAccountMultiSend, true); err != nil {
		return cfg, err
	}
	if cfg.RecoveryModule, err = address(v, KeyAccountRecoveryModule, false); err != nil {
		return cfg, err
	}
	factory, err := address(v, KeyAccountFactory, false)
	if err != nil {
		return cfg, err
	}
	if factory != (common.Address{}) {
		cfg.Factory = &factory
		if s := v.GetString(KeyAccountFactoryData); s != "" {
			if cfg.FactoryData, err = hexutil.Decode(s); err != nil {
				return cfg, fmt.Errorf("%s: %v: %w", KeyAccountFactoryData, err, types.ErrConfig)
			}
		}
	}

	for key, dst := range map[string]**big.Int{
		KeyGasCallGasLimit:         &cfg.CallGasLimit,
		KeyGasVerificationGasLimit: &cfg.VerificationGasLimit,
		KeyGasPreVerificationGas:   &cfg.PreVerificationGas,
		KeyGasMaxFeePerGas:         &cfg.MaxFeePerGas,
		KeyGasMaxPriorityFeePerGas: &cfg.MaxPriorityFeePerGas,
	} {
		n, err := bigOrNil(v, key)
		if err != nil {
			return cfg, err
		}
		if n != nil {
			*dst = n
		}
	}
	cfg.EstimateGas = v.GetBool(KeyGasEstimate)
	cfg.PreVerificationGasMultiplier = v.GetUint64(KeyGasPreVerificationMultiple)
	cfg.VerificationGasLimitMultiplier = v.GetUint64(KeyGasVerificationMultiple)
	cfg.ValidFor = v.GetDuration(KeyGasValidFor)
	cfg.ChainCount = chainCount
	return cfg, nil
}

func LoadSubmitterConfig(v *viper.Viper) submitter.Config {
	return submitter.Config{
		PollInterval:     v.GetDuration(KeySubmitPollInterval),
		SendTimeout:      v.GetDuration(KeySubmitSendTimeout),
		InclusionTimeout: v.GetDuration(KeySubmitInclusionTimeout),
	}
}

// PaymasterContext is the sponsorship context sent with every request. Nil when no
// sponsorship policy is configured.
func PaymasterContext(v *viper.Viper) map[string]interface{} {
	policy := v.GetString(KeyPaymasterPolicyID)
	if policy == "" {
		return nil
	}
	return map[string]interface{}{"sponsorshipPolicyId": policy}
}

// LoadAccountSetup reads how the account proxy is deployed. The factory falls back to the
// Safe proxy factory and the fallback handler to the 4337 module.
func LoadAccountSetup(v *viper.Viper) (account.Setup, error) {
	var setup account.Setup
	var err error
	if setup.Factory, err = address(v, KeyAccountFactory, false); err != nil {
		return setup, err
	}
	if setup.Factory == (common.Address{}) {
		setup.Factory = common.HexToAddress(DefaultFactory)
	}
	if setup.Singleton, err = address(v, KeyAccountSingleton, true); err != nil {
		return setup, err
	}
	if setup.ModuleSetup, err = address(v, KeyAccountModuleSetup, true); err != nil {
		return setup, err
	}
	module, err := address(v, KeyAccountSafeModule, true)
	if err != nil {
		return setup, err
	}
	setup.Modules = []common.Address{module}
	if setup.FallbackHandler, err = address(v, KeyAccountFallback, false); err != nil {
		return setup, err
	}
	if setup.FallbackHandler == (common.Address{}) {
		setup.FallbackHandler = module
	}
	if setup.SaltNonce, err = bigOrNil(v, KeyAccountSaltNonce); err != nil {
		return setup, err
	}
	if setup.SaltNonce == nil {
		setup.SaltNonce = new(big.Int)
	}
	return setup, nil
}
