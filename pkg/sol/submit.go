package sol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	jitorpc "github.com/jito-labs/jito-go-rpc"
)

// DefaultSubmitTimeout bounds a single submission.
const DefaultSubmitTimeout = 30 * time.Second

// Submitter broadcasts a signed transaction exactly once. Implementations
// must not retry: a resent broadcast can land twice.
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Target() string
}

// ParseCommitment maps a config string to an rpc commitment. Unknown values
// fall back to confirmed.
func ParseCommitment(commit string) rpc.CommitmentType {
	switch commit {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// RPCSubmitter sends through a standard Solana JSON-RPC node.
type RPCSubmitter struct {
	client  *rpc.Client
	commit  rpc.CommitmentType
	timeout time.Duration
}

// NewRPCSubmitter creates a submitter for the node at endpoint.
func NewRPCSubmitter(endpoint string, commit rpc.CommitmentType, timeout time.Duration) *RPCSubmitter {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &RPCSubmitter{
		client:  rpc.New(endpoint),
		commit:  commit,
		timeout: timeout,
	}
}

func (s *RPCSubmitter) Target() string {
	return "rpc"
}

func (s *RPCSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if _, err := EncodeTransaction(tx); err != nil {
		return solana.Signature{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: s.commit,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return solana.Signature{}, &TxError{Kind: TxErrorRPC, Target: s.Target(), Detail: rpcErr.Error(), Err: err}
		}
		return solana.Signature{}, &TxError{Kind: TxErrorSend, Target: s.Target(), Err: err}
	}
	if sig == (solana.Signature{}) {
		return solana.Signature{}, &TxError{Kind: TxErrorMissingResult, Target: s.Target(), Detail: "empty signature"}
	}
	return sig, nil
}

// JitoSubmitter sends through a Jito block engine's sendTransaction endpoint.
type JitoSubmitter struct {
	client *jitorpc.JitoJsonRpcClient
}

// NewJitoSubmitter creates a submitter for the block engine at blockEngineURL.
func NewJitoSubmitter(blockEngineURL string, timeout time.Duration) *JitoSubmitter {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	client := jitorpc.NewJitoJsonRpcClient(blockEngineURL, "")
	// The jito client takes no context, so the HTTP client carries the bound.
	client.Client = &http.Client{Timeout: timeout}
	return &JitoSubmitter{client: client}
}

func (s *JitoSubmitter) Target() string {
	return "jito"
}

func (s *JitoSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := EncodeTransaction(tx)
	if err != nil {
		return solana.Signature{}, err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		// SendTxn appends the base64 encoding option itself.
		res, err := s.client.SendTxn(encoded, false)
		done <- result{raw: res, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return solana.Signature{}, &TxError{Kind: TxErrorSend, Target: s.Target(), Err: ctx.Err()}
	}
	if res.err != nil {
		return solana.Signature{}, jitoError(s.Target(), res.err)
	}
	return signatureFromResult(s.Target(), res.raw)
}

// jitoRPCErrorPrefix is how jito-go-rpc reports a JSON-RPC error object.
const jitoRPCErrorPrefix = "RPC error: "

func jitoError(target string, err error) *TxError {
	if detail, ok := strings.CutPrefix(err.Error(), jitoRPCErrorPrefix); ok {
		return &TxError{Kind: TxErrorRPC, Target: target, Detail: detail, Err: err}
	}
	return &TxError{Kind: TxErrorSend, Target: target, Err: err}
}

// signatureFromResult accepts either a bare JSON string or a full JSON-RPC
// envelope.
func signatureFromResult(target string, raw json.RawMessage) (solana.Signature, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var envelope struct {
			Result string          `json:"result"`
			Error  json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return solana.Signature{}, &TxError{Kind: TxErrorMissingResult, Target: target, Detail: strings.TrimSpace(string(raw))}
		}
		if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
			return solana.Signature{}, &TxError{Kind: TxErrorRPC, Target: target, Detail: strings.TrimSpace(string(envelope.Error))}
		}
		text = envelope.Result
	}

	sig, err := solana.SignatureFromBase58(strings.TrimSpace(text))
	if err != nil {
		return solana.Signature{}, &TxError{Kind: TxErrorMissingResult, Target: target, Detail: fmt.Sprintf("%q: %v", text, err)}
	}
	return sig, nil
}
