package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solswap/pkg/config"
	"solswap/pkg/jupiter"
	"solswap/pkg/subscription"
	"solswap/pkg/swap"
)

type SwapOutput struct {
	TxSignature string          `json:"tx_signature"`
	Owner       string          `json:"owner"`
	Quote       json.RawMessage `json:"quote"`
	Confirmed   *Confirmation   `json:"confirmation,omitempty"`
}

type Confirmation struct {
	Commitment string          `json:"commitment"`
	Slot       uint64          `json:"slot"`
	Err        json.RawMessage `json:"err,omitempty"`
}

type SwapError struct {
	Error string `json:"error"`
}

type options struct {
	inputMint       string
	outputMint      string
	amount          string
	slippageBps     int
	swapMode        string
	owner           string
	dynamicSlippage string

	configPath  string
	envFile     string
	wait        bool
	waitTimeout time.Duration
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute one Jupiter swap with the wallet in PRIVATE_KEY",
		Example: `  swap --input So11111111111111111111111111111111111111112 \
       --output EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v \
       --amount 1000000 --wait`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(o.envFile); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load %s: %v\n", o.envFile, err)
			}
			err := run(cmd.Context(), o, config.NewEnvSource(), cmd.OutOrStdout())
			if err != nil {
				outputError(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.inputMint, "input", "", "Input token mint address (required)")
	f.StringVar(&o.outputMint, "output", "", "Output token mint address (required)")
	f.StringVar(&o.amount, "amount", "", "Input amount in smallest units (required)")
	f.IntVar(&o.slippageBps, "slippage", 50, "Slippage tolerance in basis points")
	f.StringVar(&o.swapMode, "mode", "", "Swap mode: ExactIn or ExactOut (aggregator default if empty)")
	f.StringVar(&o.owner, "owner", "", "Public key to build the swap for (derived from PRIVATE_KEY if empty)")
	f.StringVar(&o.dynamicSlippage, "dynamic-slippage", "", `Raw JSON forwarded as dynamicSlippage, e.g. '{"maxBps":300}'`)
	f.StringVar(&o.configPath, "config", "", "Path to a YAML service config (optional)")
	f.StringVar(&o.envFile, "env", ".env", "Path to a .env file (optional)")
	f.BoolVar(&o.wait, "wait", false, "Wait for the signature to reach the configured commitment")
	f.DurationVar(&o.waitTimeout, "wait-timeout", 90*time.Second, "How long --wait watches before giving up")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log each step to stderr")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func run(ctx context.Context, o options, source config.Source, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadService(o.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	logger, err := newLogger(o.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	body, err := o.body()
	if err != nil {
		return err
	}

	client := jupiter.NewClient(jupiter.Options{
		BaseURL:      cfg.Jupiter.BaseURL,
		QuoteTimeout: cfg.Jupiter.QuoteTimeout,
		SwapTimeout:  cfg.Jupiter.SwapTimeout,
		RateLimit:    cfg.Jupiter.RateLimit,
	})
	executor := swap.NewExecutor(logger, client, swap.NewSubmitterFactory(cfg.Submit), nil)

	settings := source.Settings()
	res, err := executor.Execute(ctx, settings, swap.Invocation{Method: http.MethodPost, Body: body})
	if err != nil {
		return err
	}

	output := SwapOutput{
		TxSignature: res.Signature.String(),
		Owner:       res.Owner,
		Quote:       res.Quote,
	}

	if o.wait {
		waitCtx, cancel := context.WithTimeout(ctx, o.waitTimeout)
		defer cancel()

		logger.Info("waiting for signature", zap.String("signature", output.TxSignature), zap.String("commitment", cfg.Submit.Commitment))
		update, err := subscription.WaitForSignature(waitCtx, settings.RPCURL, output.TxSignature, cfg.Submit.Commitment, logger)
		if err != nil {
			// The swap was submitted; report it alongside the watch failure.
			_ = writeJSON(out, output)
			return fmt.Errorf("submitted %s but could not confirm: %w", output.TxSignature, err)
		}
		output.Confirmed = &Confirmation{Commitment: cfg.Submit.Commitment, Slot: update.Slot}
		if update.Failed() {
			output.Confirmed.Err = update.TxErr
		}
	}

	return writeJSON(out, output)
}

// body builds the same JSON object an HTTP caller would post.
func (o options) body() (map[string]any, error) {
	body := map[string]any{
		"inputMint":   o.inputMint,
		"outputMint":  o.outputMint,
		"amount":      o.amount,
		"slippageBps": o.slippageBps,
	}
	if o.swapMode != "" {
		body["swapMode"] = o.swapMode
	}
	if o.owner != "" {
		body["userPublicKey"] = o.owner
	}
	if o.dynamicSlippage != "" {
		if !json.Valid([]byte(o.dynamicSlippage)) {
			return nil, errors.New("--dynamic-slippage is not valid JSON")
		}
		body["dynamicSlippage"] = json.RawMessage(o.dynamicSlippage)
	}
	return body, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zc.Build()
}

func writeJSON(out io.Writer, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(jsonData))
	return err
}

func outputError(w io.Writer, err error) {
	msg := err.Error()
	var swapErr *swap.Error
	if errors.As(err, &swapErr) {
		msg = swapErr.Message
	}
	_ = writeJSON(w, SwapError{Error: msg})
}
