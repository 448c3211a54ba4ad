package cli

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/celer-network/go-multichain/account"
	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/config"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/types"
	"github.com/celer-network/go-multichain/userregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// InitCommand creates the passkey, remembers the account and registers it.
func InitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the signing credential and register the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initAccount(cmd.Context(), os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String(flagRPID, credential.DefaultRPID, "relying party id of the credential")
	return cmd
}

func initAccount(ctx context.Context, in io.Reader, out io.Writer) error {
	a, err := initApp(in, out)
	if err != nil {
		return err
	}
	defer a.close()

	cred := a.auth.Credential()
	if cred == nil {
		if cred, err = a.auth.CreateCredential(ctx, credential.CreateParams{Name: "Safe Wallet", RPID: viper.GetString(flagRPID)}); err != nil {
			return err
		}
		fmt.Fprintf(out, "created credential %s\n", cred.ID)
	}
	if err := a.store.SaveCredential(cred); err != nil {
		return err
	}
	fmt.Fprintf(out, "public key x=%#x y=%#x\n", cred.PublicKey.X, cred.PublicKey.Y)

	var addr common.Address
	if viper.GetString(config.KeyAccountAddress) != "" {
		if addr, err = config.Account(viper.GetViper()); err != nil {
			return err
		}
	} else if addr, err = deriveAccount(ctx, cred.PublicKey); err != nil {
		return err
	}
	if err := a.store.SaveAccount(addr); err != nil {
		return err
	}
	fmt.Fprintf(out, "account %s\n", addr.Hex())

	endpoint := viper.GetString(config.KeyRegistryEndpoint)
	if endpoint == "" {
		return nil
	}
	registry := userregistry.NewClient(endpoint)
	exists, err := registry.Exists(ctx, addr)
	if err != nil {
		return err
	}
	if exists {
		fmt.Fprintln(out, "account already registered")
		return nil
	}
	if _, err := registry.Create(ctx, addr, cred); err != nil {
		return err
	}
	fmt.Fprintln(out, "account registered")
	return nil
}

// dialCode connects to the chain the account address is derived on.
var dialCode = func(ctx context.Context, desc types.ChainDescriptor) (account.CodeReader, error) {
	return chain.Dial(ctx, desc)
}

// deriveAccount computes the signer's Safe address from the first configured chain's proxy
// factory. The address is the same on every chain.
func deriveAccount(ctx context.Context, signer types.PublicKey) (common.Address, error) {
	setup, err := config.LoadAccountSetup(viper.GetViper())
	if err != nil {
		return common.Address{}, err
	}
	chains, err := config.Load(viper.GetViper())
	if err != nil {
		return common.Address{}, err
	}
	reader, err := dialCode(ctx, chains[0])
	if err != nil {
		return common.Address{}, err
	}
	return account.Derive(ctx, reader, setup, signer)
}

// LoginCommand adopts an account registered in the user registry. The registered passkey
// must be the local key.
func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Use an account already registered in the user registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return login(cmd.Context(), os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String(flagAccount, "", "registered account address")
	return cmd
}

func login(ctx context.Context, in io.Reader, out io.Writer) error {
	endpoint := viper.GetString(config.KeyRegistryEndpoint)
	if endpoint == "" {
		return fmt.Errorf("login needs %s: %w", config.KeyRegistryEndpoint, types.ErrConfig)
	}
	a, err := initApp(in, out)
	if err != nil {
		return err
	}
	defer a.close()

	addr := a.account
	if s := viper.GetString(flagAccount); s != "" {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid account %q: %w", s, types.ErrConfig)
		}
		addr = common.HexToAddress(s)
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("no account, pass --%s: %w", flagAccount, types.ErrConfig)
	}

	record, err := userregistry.NewClient(endpoint).Fetch(ctx, addr)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("account %s is not registered: %w", addr.Hex(), types.ErrConfig)
	}
	registered, err := record.Credential()
	if err != nil {
		return err
	}
	local := a.auth.Credential()
	if local == nil || !local.PublicKey.Equal(registered.PublicKey) {
		return fmt.Errorf("the local key is not the passkey registered for %s: %w", addr.Hex(), types.ErrConfig)
	}
	sig, meta, err := a.auth.Sign(ctx, common.BytesToHash(addr.Bytes()))
	if err != nil {
		return err
	}
	if !credential.Verify(registered.PublicKey, meta.AuthenticatorData, meta.ClientDataJSON, sig) {
		return fmt.Errorf("assertion does not verify against the registered passkey: %w", types.ErrConfig)
	}

	if err := a.store.SaveCredential(registered); err != nil {
		return err
	}
	if err := a.store.SaveAccount(addr); err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s with credential %s\n", addr.Hex(), registered.ID)
	return nil
}

// BalanceCommand prints the account's native or token balance on every chain.
func BalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance on every chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initApp(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			if a.account == (common.Address{}) {
				return fmt.Errorf("no account address, set %s or run init: %w", config.KeyAccountAddress, types.ErrConfig)
			}
			chains, err := config.Registry()
			if err != nil {
				return err
			}
			var token *common.Address
			if s := viper.GetString(flagToken); s != "" {
				if !common.IsHexAddress(s) {
					return fmt.Errorf("invalid token %q: %w", s, types.ErrIntent)
				}
				t := common.HexToAddress(s)
				token = &t
			}
			for _, desc := range chains {
				reader, err := chain.Dial(cmd.Context(), desc)
				if err != nil {
					return err
				}
				printBalance(cmd.Context(), cmd.OutOrStdout(), desc, reader, a.account, token)
			}
			return nil
		},
	}
	cmd.Flags().String(flagToken, "", "ERC-20 token address, native value when empty")
	return cmd
}

// balanceReader is the part of chain.Client the balance listing reads.
type balanceReader interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
	TokenInfo(ctx context.Context, token common.Address) (*chain.TokenInfo, error)
}

// printBalance writes one chain's line. A failed read is printed, not returned, so the
// other chains are still listed.
func printBalance(ctx context.Context, out io.Writer, desc types.ChainDescriptor, reader balanceReader, addr common.Address, token *common.Address) {
	var (
		amount   *big.Int
		symbol   = "native"
		decimals = uint8(18)
		err      error
	)
	if token == nil {
		amount, err = reader.Balance(ctx, addr)
	} else {
		var info *chain.TokenInfo
		if info, err = reader.TokenInfo(ctx, *token); err == nil {
			symbol, decimals = info.Symbol, info.Decimals
			amount, err = reader.TokenBalance(ctx, *token, addr)
		}
	}
	if err != nil {
		fmt.Fprintf(out, "%-20s error: %v\n", desc.Name(), err)
		return
	}
	fmt.Fprintf(out, "%-20s %s %s\n", desc.Name(), formatUnits(amount, decimals), symbol)
}

// formatUnits renders amount with decimals fractional digits, trailing zeros trimmed.
func formatUnits(amount *big.Int, decimals uint8) string {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, unit, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := frac.String()
	digits = strings.Repeat("0", int(decimals)-len(digits)) + digits
	return whole.String() + "." + strings.TrimRight(digits, "0")
}

// ChainsCommand lists the configured chains.
func ChainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List the configured chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			chains, err := config.Registry()
			if err != nil {
				return err
			}
			for _, c := range chains {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8d %-20s %-40s %s\n", c.ChainID, c.Name(), c.BundlerEndpoint, c.ExplorerBaseURL)
			}
			return nil
		},
	}
}

// HistoryCommand prints settled sessions, or exports them as YAML.
func HistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past multichain actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initApp(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			reports, err := a.store.Reports()
			if err != nil {
				return err
			}
			if path := viper.GetString(flagExport); path != "" {
				bytes, err := yaml.Marshal(reports)
				if err != nil {
					return err
				}
				return os.WriteFile(path, bytes, 0o644)
			}
			chains, _ := config.Registry()
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d/%d confirmed\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Intent, r.Confirmed(), len(r.Results))
				printReport(cmd.OutOrStdout(), chains, r)
			}
			return nil
		},
	}
	cmd.Flags().String(flagExport, "", "write the history as YAML to this file")
	return cmd
}

// ReportCommand prints one settled session.
func ReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-id>",
		Short: "Show the outcome of one multichain action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initApp(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			report, ok, err := a.store.Report(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no session %s", args[0])
			}
			chains, _ := config.Registry()
			fmt.Fprintf(cmd.OutOrStdout(), "%s by %s\n", report.Intent, report.Account.Hex())
			printReport(cmd.OutOrStdout(), chains, report)
			return nil
		},
	}
}

// ResetCommand forgets the stored account and credential. Session history is kept unless
// --history is given. The key file is kept.
func ResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the local account data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initApp(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.store.Reset(); err != nil {
				return err
			}
			if viper.GetBool(flagHistory) {
				return a.store.ClearHistory()
			}
			return nil
		},
	}
	cmd.Flags().Bool(flagHistory, false, "also delete the session history")
	return cmd
}
