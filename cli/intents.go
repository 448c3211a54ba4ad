package cli

import (
	"fmt"
	"math/big"

	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addressFlag(name string) (common.Address, error) {
	s := viper.GetString(name)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: invalid address %q: %w", name, s, types.ErrIntent)
	}
	return common.HexToAddress(s), nil
}

func intentCommand(use, short string, intent func() (types.Intent, error), flags func(cmd *cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := intent()
			if err != nil {
				return err
			}
			return runIntent(cmd.Context(), i)
		},
	}
	flags(cmd)
	return cmd
}

func subjectIntent(kind types.IntentKind, flag string) func() (types.Intent, error) {
	return func() (types.Intent, error) {
		subject, err := addressFlag(flag)
		if err != nil {
			return types.Intent{}, err
		}
		return types.Intent{Kind: kind, Subject: subject, Threshold: viper.GetUint64(flagThreshold)}, nil
	}
}

func subjectFlags(flag, usage string, threshold bool) func(cmd *cobra.Command) {
	return func(cmd *cobra.Command) {
		cmd.Flags().String(flag, "", usage)
		cmd.MarkFlagRequired(flag)
		if threshold {
			cmd.Flags().Uint64(flagThreshold, 1, "threshold after the change")
		}
	}
}

func AddOwnerCommand() *cobra.Command {
	return intentCommand("add-owner", "Add an owner to the account on every chain",
		subjectIntent(types.IntentAddOwner, flagOwner), subjectFlags(flagOwner, "owner address", true))
}

func RemoveOwnerCommand() *cobra.Command {
	return intentCommand("remove-owner", "Remove an owner from the account on every chain",
		subjectIntent(types.IntentRemoveOwner, flagOwner), subjectFlags(flagOwner, "owner address", true))
}

func AddGuardianCommand() *cobra.Command {
	return intentCommand("add-guardian", "Add a recovery guardian on every chain",
		subjectIntent(types.IntentAddGuardian, flagGuardian), subjectFlags(flagGuardian, "guardian address", true))
}

func RemoveGuardianCommand() *cobra.Command {
	return intentCommand("remove-guardian", "Remove a recovery guardian on every chain",
		subjectIntent(types.IntentRemoveGuardian, flagGuardian), subjectFlags(flagGuardian, "guardian address", true))
}

func EnableModuleCommand() *cobra.Command {
	return intentCommand("enable-module", "Enable a Safe module on every chain",
		subjectIntent(types.IntentEnableModule, flagModule), subjectFlags(flagModule, "module address", false))
}

func TransferCommand() *cobra.Command {
	return intentCommand("transfer", "Transfer native value or an ERC-20 token on every chain",
		transferIntent,
		func(cmd *cobra.Command) {
			cmd.Flags().String(flagTo, "", "recipient address")
			cmd.Flags().String(flagAmount, "", "amount in wei or token base units")
			cmd.Flags().String(flagToken, "", "ERC-20 token address, native value when empty")
			cmd.MarkFlagRequired(flagTo)
			cmd.MarkFlagRequired(flagAmount)
		})
}

func transferIntent() (types.Intent, error) {
	to, err := addressFlag(flagTo)
	if err != nil {
		return types.Intent{}, err
	}
	amount, ok := new(big.Int).SetString(viper.GetString(flagAmount), 10)
	if !ok {
		return types.Intent{}, fmt.Errorf("--%s: invalid amount %q: %w", flagAmount, viper.GetString(flagAmount), types.ErrIntent)
	}
	intent := types.Intent{Kind: types.IntentTransferValue, To: to, Amount: amount}
	if viper.GetString(flagToken) != "" {
		token, err := addressFlag(flagToken)
		if err != nil {
			return types.Intent{}, err
		}
		intent.Token = &token
	}
	return intent, nil
}
