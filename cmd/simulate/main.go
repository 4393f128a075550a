// Command simulate runs one dashboard operation against live endpoints and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/athena-web3/dashboard-core/internal/app"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/core/service"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintln(out, version.GetBanner())
		return nil
	case "balances":
		return runBalances(ctx, args[1:], out)
	case "chains":
		return runChains(ctx, args[1:], out)
	case "tokens":
		return runTokens(ctx, args[1:], out)
	case "swap":
		return runSwap(ctx, args[1:], out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `usage: simulate <command> [flags]

commands:
  balances  -wallet <addr,...> [-price]
  chains
  tokens    -chain <id>
  swap      -wallet <addr,...> -from <chain> -to <chain> -in <token> -out <token> -amount <n> [-receiver <addr>] [-execute] [-wait <dur>]
  version`)
}

// setup loads configuration and wires the components for one command.
func setup(ctx context.Context, verbose, withPrice bool) (*app.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.PriceEnrichment = cfg.PriceEnrichment || withPrice

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, log)
}

func walletFlag(fs *flag.FlagSet) *string {
	return fs.String("wallet", os.Getenv("WALLET_ADDRESSES"), "comma separated CAIP-10 or bare addresses")
}

func parseWallet(s string) (domain.WalletState, error) {
	var entries []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return domain.WalletState{}, errors.New("no wallet address given")
	}
	return domain.WalletFromAddresses(entries)
}

func runBalances(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("balances", flag.ContinueOnError)
	walletArg := walletFlag(fs)
	withPrice := fs.Bool("price", false, "fill USD values from DexScreener")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wallet, err := parseWallet(*walletArg)
	if err != nil {
		return err
	}
	comp, err := setup(ctx, *verbose, *withPrice)
	if err != nil {
		return err
	}
	defer comp.Close()

	// Each connected namespace is aggregated separately.
	var all []domain.TokenBalance
	for _, addr := range comp.Resolver.ConnectedAddresses(wallet) {
		w := domain.WalletState{Connected: true, Address: addr.Address, Namespace: addr.Namespace, ChainID: addr.ChainID}
		all = append(all, comp.Aggregator.GetAllBalances(ctx, w)...)
	}
	return writeJSON(out, map[string]any{
		"balances": all,
		"summary":  service.Summarize(all),
	})
}

func runChains(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chains", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	comp, err := setup(ctx, *verbose, false)
	if err != nil {
		return err
	}
	defer comp.Close()

	chains, err := comp.Catalog.LoadChains(ctx)
	if err != nil {
		return errors.New(domain.UserMessage("load chains", err))
	}
	return writeJSON(out, chains)
}

func runTokens(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	chainID := fs.String("chain", "1", "chain id")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	comp, err := setup(ctx, *verbose, false)
	if err != nil {
		return err
	}
	defer comp.Close()

	tokens, err := comp.Catalog.LoadTokens(ctx, *chainID)
	if err != nil {
		return errors.New(domain.UserMessage("load tokens", err))
	}
	return writeJSON(out, tokens)
}

func runSwap(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("swap", flag.ContinueOnError)
	walletArg := walletFlag(fs)
	from := fs.String("from", "1", "source chain id")
	to := fs.String("to", domain.SolanaRelayChainID, "destination chain id")
	tokenIn := fs.String("in", "", "source token address")
	tokenOut := fs.String("out", "", "destination token address")
	amount := fs.String("amount", "", "amount in source token units")
	receiver := fs.String("receiver", "", "receiver address (defaults to the source address)")
	execute := fs.Bool("execute", false, "submit the swap after quoting")
	wait := fs.Duration("wait", 2*time.Minute, "how long to follow status after execute")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wallet, err := parseWallet(*walletArg)
	if err != nil {
		return err
	}
	comp, err := setup(ctx, *verbose, false)
	if err != nil {
		return err
	}
	defer comp.Close()

	source, err := comp.Resolver.DefaultAddress(wallet, *from)
	if err != nil {
		return err
	}
	req := domain.QuoteRequest{
		SourceChain:      *from,
		DestinationChain: *to,
		TokenIn:          *tokenIn,
		TokenOut:         *tokenOut,
		Amount:           *amount,
		UserAddress:      source.Address,
		ReceiverAddress:  *receiver,
	}
	if req.ReceiverAddress == "" {
		req.ReceiverAddress = source.Address
	}

	session, err := comp.Orchestrator.RequestQuote(ctx, wallet, req)
	if err != nil {
		return errors.New(domain.UserMessage("get quote", err))
	}
	if !*execute {
		return writeSession(out, session)
	}

	done := make(chan domain.SwapSession, 1)
	comp.Orchestrator.OnTransition(func(s domain.SwapSession) {
		if s.Status.IsTerminal() {
			select {
			case done <- s:
			default:
			}
		}
	})
	if _, err := comp.Orchestrator.Execute(ctx); err != nil {
		return errors.New(domain.UserMessage("execute swap", err))
	}

	select {
	case final := <-done:
		return writeSession(out, final)
	case <-time.After(*wait):
		return writeSession(out, comp.Orchestrator.Session())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeSession(out io.Writer, s domain.SwapSession) error {
	view := map[string]any{"session": s}
	if sum, ok := service.SummarizeQuote(s.Quote); ok {
		view["summary"] = sum
	}
	return writeJSON(out, view)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
