// Package swap executes one aggregator swap per invocation on behalf of the
// server-held wallet: validate, quote, build, sign, submit.
package swap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"solswap/pkg/config"
	"solswap/pkg/jupiter"
	"solswap/pkg/metrics"
	"solswap/pkg/sol"
	"solswap/pkg/wallet"
)

// Aggregator quotes and builds swap transactions.
type Aggregator interface {
	GetQuote(ctx context.Context, p jupiter.QuoteParams) (json.RawMessage, error)
	BuildSwap(ctx context.Context, p jupiter.SwapParams) (*jupiter.SwapTransaction, error)
}

// SubmitterFactory returns the submitter for one invocation's RPC endpoint.
type SubmitterFactory func(rpcURL string) sol.Submitter

// NewSubmitterFactory picks RPC or Jito submission from cfg.
func NewSubmitterFactory(cfg config.Submit) SubmitterFactory {
	if cfg.Via == config.SubmitViaJito {
		jito := sol.NewJitoSubmitter(cfg.JitoURL, cfg.Timeout)
		return func(string) sol.Submitter { return jito }
	}
	commit := sol.ParseCommitment(cfg.Commitment)
	return func(rpcURL string) sol.Submitter {
		return sol.NewRPCSubmitter(rpcURL, commit, cfg.Timeout)
	}
}

// Invocation is one call into the executor. Body may be []byte, string,
// json.RawMessage or an already decoded map.
type Invocation struct {
	Method string
	Body   any
}

// Result is a submitted swap.
type Result struct {
	Signature solana.Signature
	Owner     string
	Quote     json.RawMessage
}

type successBody struct {
	TxSignature string          `json:"tx_signature"`
	Quote       json.RawMessage `json:"quote"`
}

// Executor holds no request state and is safe for concurrent use.
type Executor struct {
	logger     *zap.Logger
	aggregator Aggregator
	submitters SubmitterFactory
	metrics    metrics.Recorder
}

// NewExecutor creates an Executor. A nil recorder disables metrics.
func NewExecutor(logger *zap.Logger, aggregator Aggregator, submitters SubmitterFactory, rec metrics.Recorder) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = (*metrics.Swap)(nil)
	}
	return &Executor{
		logger:     logger,
		aggregator: aggregator,
		submitters: submitters,
		metrics:    rec,
	}
}

// Handle runs one invocation and renders the outcome.
func (e *Executor) Handle(ctx context.Context, settings config.Settings, inv Invocation) Response {
	log := e.logger.With(zap.String("request_id", uuid.NewString()))

	res, err := e.execute(ctx, log, settings, inv)
	if err != nil {
		var swapErr *Error
		if !errors.As(err, &swapErr) {
			swapErr = executionFailed(err)
		}
		e.metrics.Outcome(string(swapErr.Kind))
		log.Warn("swap failed",
			zap.String("kind", string(swapErr.Kind)),
			zap.Int("status", swapErr.Status()),
			zap.String("message", swapErr.Message),
		)
		return swapErr.Response()
	}

	e.metrics.Outcome("ok")
	log.Info("swap submitted",
		zap.String("signature", res.Signature.String()),
		zap.String("owner", res.Owner),
	)
	return jsonResponse(http.StatusOK, successBody{
		TxSignature: res.Signature.String(),
		Quote:       res.Quote,
	})
}

// Execute runs the pipeline and returns the typed outcome. Errors are always
// *Error.
func (e *Executor) Execute(ctx context.Context, settings config.Settings, inv Invocation) (*Result, error) {
	return e.execute(ctx, e.logger.With(zap.String("request_id", uuid.NewString())), settings, inv)
}

func (e *Executor) execute(ctx context.Context, log *zap.Logger, settings config.Settings, inv Invocation) (*Result, error) {
	if inv.Method != http.MethodPost {
		return nil, errMethodNotAllowed
	}
	if !settings.HasPrivateKey() {
		return nil, errMissingSecret
	}

	fields, err := ParseBody(inv.Body)
	if err != nil {
		return nil, invalidJSON(err)
	}
	if missing := MissingFields(fields); len(missing) > 0 {
		return nil, newError(KindInvalidInput, nil, "Missing fields: %s", strings.Join(missing, ", "))
	}
	req, err := DecodeRequest(fields)
	if err != nil {
		var fieldErr *FieldError
		if errors.As(err, &fieldErr) {
			return nil, newError(KindInvalidInput, err, "Invalid field %s: %v", fieldErr.Field, fieldErr.Err)
		}
		return nil, newError(KindInvalidInput, err, "Invalid request: %v", err)
	}

	key, err := wallet.ParseSecret(settings.PrivateKey)
	if err != nil {
		return nil, invalidSecret(err)
	}
	owner := wallet.ResolveOwner(key, req.UserPublicKey)

	log = log.With(
		zap.String("input_mint", req.InputMint),
		zap.String("output_mint", req.OutputMint),
		zap.Uint64("amount", req.Amount),
		zap.Int("slippage_bps", req.SlippageBps),
		zap.String("owner", owner),
	)

	start := time.Now()
	quote, err := e.aggregator.GetQuote(ctx, jupiter.QuoteParams{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
		SwapMode:    req.SwapMode,
	})
	e.metrics.Step("quote", time.Since(start), err)
	if err != nil {
		return nil, quoteFailed(err)
	}
	if summary, err := jupiter.Summarize(quote); err == nil {
		log.Debug("quote received",
			zap.Stringer("in_amount", summary.InAmount),
			zap.Stringer("out_amount", summary.OutAmount),
			zap.Stringer("min_out", summary.OtherAmountThreshold),
			zap.String("price_impact_pct", summary.PriceImpactPct),
			zap.Int("hops", summary.Hops),
		)
	}

	start = time.Now()
	built, err := e.aggregator.BuildSwap(ctx, jupiter.SwapParams{
		Quote:           quote,
		UserPublicKey:   owner,
		DynamicSlippage: req.DynamicSlippage,
	})
	e.metrics.Step("build", time.Since(start), err)
	if err != nil {
		return nil, buildFailed(err)
	}
	if built == nil || built.SwapTransaction == "" {
		return nil, buildFailed(jupiter.ErrMissingSwapTransaction)
	}

	start = time.Now()
	tx, err := sol.SignSwapTransaction(built.SwapTransaction, key)
	e.metrics.Step("sign", time.Since(start), err)
	if err != nil {
		return nil, executionFailed(err)
	}

	submitter := e.submitters(settings.RPCURL)
	log.Debug("submitting", zap.String("target", submitter.Target()))

	start = time.Now()
	sig, err := submitter.Submit(ctx, tx)
	e.metrics.Step("submit", time.Since(start), err)
	if err != nil {
		return nil, executionFailed(err)
	}

	return &Result{Signature: sig, Owner: owner, Quote: quote}, nil
}
