package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"solswap/pkg/config"
	"solswap/pkg/jupiter"
	"solswap/pkg/sol/soltest"
	"solswap/pkg/swap"
)

const testQuote = `{"inputMint":"So11111111111111111111111111111111111111112","outputMint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","inAmount":"1000","outAmount":"170","otherAmountThreshold":"169","swapMode":"ExactIn","slippageBps":50,"routePlan":[]}`

func newFakeAggregator(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(jupiter.QuotePath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, testQuote)
	})
	mux.HandleFunc(jupiter.SwapPath, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			UserPublicKey string `json:"userPublicKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		blob, err := soltest.UnsignedTransactionB64(solana.MustPublicKeyFromBase58(payload.UserPublicKey))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"swapTransaction": blob})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOptionsBody(t *testing.T) {
	o := options{inputMint: "A", outputMint: "B", amount: "10", slippageBps: 50}
	body, err := o.body()
	require.NoError(t, err)
	require.Equal(t, "10", body["amount"])
	require.NotContains(t, body, "swapMode")
	require.NotContains(t, body, "userPublicKey")

	o.swapMode = "ExactOut"
	o.dynamicSlippage = `{"maxBps":300}`
	body, err = o.body()
	require.NoError(t, err)
	require.Equal(t, "ExactOut", body["swapMode"])
	require.Equal(t, json.RawMessage(`{"maxBps":300}`), body["dynamicSlippage"])

	o.dynamicSlippage = `{maxBps`
	_, err = o.body()
	require.Error(t, err)
}

func TestRunPrintsSignature(t *testing.T) {
	agg := newFakeAggregator(t)
	node := soltest.NewRPCServer()
	defer node.Close()
	t.Setenv("JUPITER_BASE_URL", agg.URL)

	w := solana.NewWallet()
	source := config.StaticSource{PrivateKey: w.PrivateKey.String(), RPCURL: node.URL}
	o := options{
		inputMint:   "So11111111111111111111111111111111111111112",
		outputMint:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		amount:      "1000",
		slippageBps: 50,
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, source, &out))

	var got SwapOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, w.PublicKey().String(), got.Owner)
	require.JSONEq(t, testQuote, string(got.Quote))

	received := node.Received()
	require.Len(t, received, 1)
	require.Equal(t, received[0].Signatures[0].String(), got.TxSignature)
	require.Nil(t, got.Confirmed)
}

func TestRunReportsSwapError(t *testing.T) {
	t.Setenv("JUPITER_BASE_URL", "http://127.0.0.1:1")
	o := options{inputMint: "A", outputMint: "B", amount: "1", slippageBps: 50}

	err := run(context.Background(), o, config.StaticSource{}, io.Discard)
	var swapErr *swap.Error
	require.ErrorAs(t, err, &swapErr)
	require.Equal(t, swap.KindMissingConfig, swapErr.Kind)

	var stderr bytes.Buffer
	outputError(&stderr, err)
	require.JSONEq(t, `{"error":"PRIVATE_KEY environment variable is missing."}`, stderr.String())
}

func TestRootCmdRequiresFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--input", "A"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.Execute())
}
