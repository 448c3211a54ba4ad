package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/celer-network/go-multichain/cli"
	"github.com/celer-network/go-multichain/config"
	"github.com/celer-network/go-multichain/log"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig    = "config"
	flagLogConfig = "logconfig"
)

func main() {
	cobra.EnableCommandSorting = false
	zlog.Logger = zlog.With().Caller().Logger()

	rootCmd := &cobra.Command{
		Use:           "multichain",
		Short:         "Sign once, act on every chain of a Safe account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := viper.BindPFlags(cmd.Flags())
			if err != nil {
				return err
			}
			log.Configure(viper.GetString(flagLogConfig))
			return config.Init(viper.GetViper(), viper.GetString(flagConfig))
		},
	}

	rootCmd.AddCommand(
		cli.ChainsCommand(),
		cli.InitCommand(),
		cli.LoginCommand(),
		cli.BalanceCommand(),
		cli.AddOwnerCommand(),
		cli.RemoveOwnerCommand(),
		cli.AddGuardianCommand(),
		cli.RemoveGuardianCommand(),
		cli.EnableModuleCommand(),
		cli.TransferCommand(),
		cli.HistoryCommand(),
		cli.ReportCommand(),
		cli.ResetCommand(),
	)

	rootCmd.PersistentFlags().String(flagConfig, "./multichain.yaml", "config path")
	rootCmd.PersistentFlags().String(flagLogConfig, "", "log config path")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		zlog.Fatal().Err(err).Send()
	}
}
