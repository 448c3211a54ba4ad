// Package cli holds the multichain command line: one command per intent plus account
// setup and session history.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/celer-network/go-multichain/builder"
	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/config"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/db/badgerdb"
	"github.com/celer-network/go-multichain/paymaster"
	"github.com/celer-network/go-multichain/session"
	"github.com/celer-network/go-multichain/storage"
	"github.com/celer-network/go-multichain/submitter"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	flagThreshold = "threshold"
	flagOwner     = "owner"
	flagGuardian  = "guardian"
	flagModule    = "module"
	flagTo        = "to"
	flagAmount    = "amount"
	flagToken     = "token"
	flagExport    = "export"
	flagRPID      = "rp-id"
	flagAccount   = "account"
	flagHistory   = "history"
)

// app is the per-invocation wiring. The account and signer are resolved once here and
// passed on explicitly.
type app struct {
	chains  []types.ChainDescriptor
	account common.Address
	store   *storage.Storage
	auth    *credential.Authenticator
	in      io.Reader
	out     io.Writer
	closers []func()
}

func initApp(in io.Reader, out io.Writer) (*app, error) {
	bdb, err := badgerdb.NewDB(viper.GetString(config.KeyStorageDir))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &app{store: storage.NewStorage(bdb), in: in, out: out}
	a.closers = append(a.closers, func() { a.store.Close() })

	a.auth, err = credential.LoadLocalAuthenticator(
		viper.GetString(config.KeyCredentialKey), viper.GetString(config.KeyCredentialRPID), in, out)
	if err != nil {
		a.close()
		return nil, err
	}

	if viper.GetString(config.KeyAccountAddress) != "" {
		if a.account, err = config.Account(viper.GetViper()); err != nil {
			a.close()
			return nil, err
		}
	} else if stored, ok, err := a.store.Account(); err != nil {
		a.close()
		return nil, err
	} else if ok {
		a.account = stored
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) signer() (types.PublicKey, error) {
	cred := a.auth.Credential()
	if cred == nil {
		return types.PublicKey{}, fmt.Errorf("no credential, run init first: %w", types.ErrConfig)
	}
	return cred.PublicKey, nil
}

// controller dials every chain and wires a session over them.
func (a *app) controller(ctx context.Context) (*session.Controller, error) {
	chains, err := config.Registry()
	if err != nil {
		return nil, err
	}
	a.chains = chains
	if a.account == (common.Address{}) {
		return nil, fmt.Errorf("no account address, set %s or run init: %w", config.KeyAccountAddress, types.ErrConfig)
	}
	signer, err := a.signer()
	if err != nil {
		return nil, err
	}

	readers := make(map[uint64]chain.Reader, len(chains))
	bundlers := make(map[uint64]bundler.Client, len(chains))
	for _, desc := range chains {
		reader, err := chain.Dial(ctx, desc)
		if err != nil {
			return nil, err
		}
		readers[desc.ChainID] = reader
		b, err := bundler.Dial(ctx, desc)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		bundlers[desc.ChainID] = b
	}

	sponsor := paymaster.NewRPCClient(chains, viper.GetString(config.KeyPaymasterEndpoint), config.PaymasterContext(viper.GetViper()))
	a.closers = append(a.closers, sponsor.Close)

	builderConfig, err := config.LoadBuilderConfig(viper.GetViper(), len(chains))
	if err != nil {
		return nil, err
	}
	if builderConfig.Factory == nil || len(builderConfig.FactoryData) == 0 {
		if err := deployFromSetup(&builderConfig, signer); err != nil {
			return nil, err
		}
	}
	b, err := builder.New(builderConfig, readers, bundlers, sponsor)
	if err != nil {
		return nil, err
	}
	return session.New(session.Config{
		Chains:    chains,
		Account:   a.account,
		Signer:    signer,
		Builder:   b,
		Provider:  a.auth,
		Submitter: submitter.New(config.LoadSubmitterConfig(viper.GetViper()), bundlers),
		Store:     a.store,
	})
}

// deployFromSetup sets the factory call that deploys the signer's derived account.
func deployFromSetup(cfg *builder.Config, signer types.PublicKey) error {
	setup, err := config.LoadAccountSetup(viper.GetViper())
	if err != nil {
		return err
	}
	serializer, err := types.NewSerializer()
	if err != nil {
		return err
	}
	data, err := setup.FactoryData(serializer, signer)
	if err != nil {
		return err
	}
	cfg.Factory = &setup.Factory
	cfg.FactoryData = data
	return nil
}

func chainName(chains []types.ChainDescriptor, id uint64) types.ChainDescriptor {
	for _, c := range chains {
		if c.ChainID == id {
			return c
		}
	}
	return types.ChainDescriptor{ChainID: id}
}

// runIntent performs intent on every chain and prints each chain's outcome.
func runIntent(ctx context.Context, intent types.Intent) error {
	a, err := initApp(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()
	controller, err := a.controller(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			select {
			case u := <-controller.Updates():
				fmt.Fprintf(a.out, "  %-20s %s\n", chainName(a.chains, u.ChainID).Name(), u.Status)
			case <-done:
				return
			}
		}
	}()
	fmt.Fprintf(a.out, "%s on %d chains\n", intent, len(a.chains))
	report, err := controller.Run(ctx, intent)
	close(done)
	<-printed
	if err != nil {
		return fmt.Errorf("aborted, nothing was submitted: %w", err)
	}
	printReport(a.out, a.chains, report)
	if report.Confirmed() < len(report.Results) {
		return fmt.Errorf("%d of %d chains confirmed", report.Confirmed(), len(report.Results))
	}
	return nil
}

func printReport(out io.Writer, chains []types.ChainDescriptor, report *types.SessionReport) {
	fmt.Fprintf(out, "session %s root %s\n", report.SessionID, report.Root.Hex())
	for _, r := range report.Results {
		desc := chainName(chains, r.ChainID)
		line := fmt.Sprintf("  %-20s %-10s", desc.Name(), r.Status)
		if r.TransactionHash != nil {
			if url := desc.TxURL(*r.TransactionHash); url != "" {
				line += " " + url
			} else {
				line += " " + r.TransactionHash.Hex()
			}
		}
		if r.ErrorKind != types.ErrorKindNone {
			line += fmt.Sprintf(" %s: %s", r.ErrorKind, r.Reason)
		}
		fmt.Fprintln(out, line)
	}
}
