// revertreason prints why an included user operation reverted.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/types"
	"github.com/celer-network/go-multichain/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

var (
	svr     = flag.String("bundler", "http://127.0.0.1:4337", "bundler JSON-RPC url")
	opHash  = flag.String("op", "", "user operation hash")
	raw     = flag.String("data", "", "decode this revert data instead of querying the bundler")
	verbose = flag.Bool("v", false, "also print the full receipt")
)

func main() {
	flag.Parse()
	if *raw != "" {
		printReason(utils.DecodeRevertReasonHex(*raw))
		return
	}
	if *opHash == "" {
		log.Fatal().Msg("-op is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := rpc.DialContext(ctx, *svr)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	defer c.Close()

	var receipt *bundler.UserOperationReceipt
	if err = c.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", common.HexToHash(*opHash)); err != nil {
		log.Fatal().Err(err).Send()
	}
	if receipt == nil {
		log.Info().Msg("operation not included yet")
		return
	}
	if *verbose {
		log.Info().Interface("receipt", receipt).Send()
	}
	printReason(receiptReason(receipt.ToReceipt()))
}

func receiptReason(r *types.Receipt) string {
	if r.Success {
		return ""
	}
	return r.FailureReason
}

func printReason(reason string) {
	if reason == "" {
		log.Info().Msg("No revert reason")
		return
	}
	log.Info().Str("reason", reason).Send()
}
