// Package soltest provides fixture transactions and a fake JSON-RPC node.
package soltest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// UnsignedTransaction builds a one-instruction transfer paid by payer with
// zeroed signature placeholders, the shape the aggregator returns.
func UnsignedTransaction(payer solana.PublicKey) (*solana.Transaction, error) {
	recipient := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1_000, payer, recipient).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, err
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

// UnsignedTransactionB64 is UnsignedTransaction in wire form.
func UnsignedTransactionB64(payer solana.PublicKey) (string, error) {
	tx, err := UnsignedTransaction(payer)
	if err != nil {
		return "", err
	}
	return encode(tx)
}

// UnsignedV0Transaction is UnsignedTransaction as a v0 message whose
// recipient is resolved through one address lookup table.
func UnsignedV0Transaction(payer solana.PublicKey) (*solana.Transaction, error) {
	recipient := solana.NewWallet().PublicKey()
	table := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1_000, payer, recipient).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
		solana.TransactionAddressTables(map[solana.PublicKey]solana.PublicKeySlice{
			table: {recipient},
		}),
	)
	if err != nil {
		return nil, err
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

// UnsignedV0TransactionB64 is UnsignedV0Transaction in wire form.
func UnsignedV0TransactionB64(payer solana.PublicKey) (string, error) {
	tx, err := UnsignedV0Transaction(payer)
	if err != nil {
		return "", err
	}
	return encode(tx)
}

func encode(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError is returned in place of a result when set on RPCServer.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCServer answers sendTransaction with the first signature of the
// submitted transaction, or with Fail when set. It serves any path, so it
// stands in for both an RPC node and a block engine.
type RPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	received []*solana.Transaction
	paths    []string
	fail     *RPCError
}

// NewRPCServer starts a fake node; callers must Close it.
func NewRPCServer() *RPCServer {
	s := &RPCServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Fail makes every following sendTransaction answer with err.
func (s *RPCServer) Fail(err RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = &err
}

// Received returns the transactions submitted so far.
func (s *RPCServer) Received() []*solana.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*solana.Transaction(nil), s.received...)
}

// Paths returns the request paths of accepted submissions.
func (s *RPCServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func (s *RPCServer) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	w.Header().Set("Content-Type", "application/json")

	if req.Method != "sendTransaction" || len(req.Params) == 0 {
		reply["error"] = RPCError{Code: -32601, Message: "Method not found"}
		_ = json.NewEncoder(w).Encode(reply)
		return
	}

	tx, err := decodeParams(req.Params)
	if err != nil {
		reply["error"] = RPCError{Code: -32602, Message: err.Error()}
		_ = json.NewEncoder(w).Encode(reply)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, tx)
	s.paths = append(s.paths, r.URL.Path)
	fail := s.fail
	s.mu.Unlock()

	if fail != nil {
		reply["error"] = *fail
	} else {
		reply["result"] = tx.Signatures[0].String()
	}
	_ = json.NewEncoder(w).Encode(reply)
}

// decodeParams expects [<base64 tx>, {"encoding":"base64",...}] with the
// config object optional.
func decodeParams(params []json.RawMessage) (*solana.Transaction, error) {
	if len(params) > 2 {
		return nil, fmt.Errorf("expected at most 2 params, got %d", len(params))
	}
	if len(params) == 2 {
		var opts struct {
			Encoding string `json:"encoding"`
		}
		if err := json.Unmarshal(params[1], &opts); err != nil {
			return nil, fmt.Errorf("invalid config param: %w", err)
		}
		if opts.Encoding != "" && opts.Encoding != "base64" {
			return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
		}
	}

	var b64 string
	if err := json.Unmarshal(params[0], &b64); err != nil {
		return nil, fmt.Errorf("invalid type for transaction param: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
}
