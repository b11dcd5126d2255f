// Package sol signs prebuilt swap transactions and submits them to the network.
package sol

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// TxErrorKind classifies sign/submit failures.
type TxErrorKind string

const (
	TxErrorDecode        TxErrorKind = "decode_unsigned_tx"
	TxErrorDeserialize   TxErrorKind = "deserialize_unsigned_tx"
	TxErrorSign          TxErrorKind = "sign_tx"
	TxErrorSerialize     TxErrorKind = "serialize_tx"
	TxErrorSend          TxErrorKind = "request_send"
	TxErrorRPC           TxErrorKind = "rpc_error"
	TxErrorMissingResult TxErrorKind = "missing_result"
)

// ErrSignerNotRequired means the key has no signer slot in the message, which
// happens when the swap was built for a different owner.
var ErrSignerNotRequired = errors.New("key is not a required signer of the transaction")

// TxError describes a failure while signing or submitting a transaction.
type TxError struct {
	Kind   TxErrorKind
	Target string
	Detail string
	Err    error
}

func (e *TxError) Error() string {
	switch e.Kind {
	case TxErrorDecode:
		return fmt.Sprintf("decode unsigned tx b64: %v", e.Err)
	case TxErrorDeserialize:
		return fmt.Sprintf("deserialize unsigned tx: %v", e.Err)
	case TxErrorSign:
		return fmt.Sprintf("sign tx: %v", e.Err)
	case TxErrorSerialize:
		return fmt.Sprintf("serialize tx: %v", e.Err)
	case TxErrorSend:
		return fmt.Sprintf("%s request send failed: %v", e.Target, e.Err)
	case TxErrorRPC:
		return fmt.Sprintf("%s returned error: %s", e.Target, e.Detail)
	case TxErrorMissingResult:
		return fmt.Sprintf("%s response missing signature: %s", e.Target, e.Detail)
	default:
		return "transaction submit error"
	}
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// DecodeTransaction decodes a base64 wire transaction, legacy or versioned.
func DecodeTransaction(unsignedTxB64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(unsignedTxB64))
	if err != nil {
		return nil, &TxError{Kind: TxErrorDecode, Err: err}
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, &TxError{Kind: TxErrorDeserialize, Err: err}
	}
	return tx, nil
}

// AttachSignature signs the message with key and stores the signature in the
// key's signer slot. Other slots are left as they are.
func AttachSignature(tx *solana.Transaction, key solana.PrivateKey) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	pub := key.PublicKey()

	slot := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(pub) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return &TxError{Kind: TxErrorSign, Err: fmt.Errorf("%w: %s", ErrSignerNotRequired, pub)}
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return &TxError{Kind: TxErrorSign, Err: err}
	}
	sig, err := key.Sign(message)
	if err != nil {
		return &TxError{Kind: TxErrorSign, Err: err}
	}

	if len(tx.Signatures) != required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[slot] = sig
	return nil
}

// SignSwapTransaction decodes an unsigned aggregator transaction and signs it.
func SignSwapTransaction(unsignedTxB64 string, key solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := DecodeTransaction(unsignedTxB64)
	if err != nil {
		return nil, err
	}
	if err := AttachSignature(tx, key); err != nil {
		return nil, err
	}
	return tx, nil
}

// EncodeTransaction serializes a signed transaction.
func EncodeTransaction(tx *solana.Transaction) ([]byte, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, &TxError{Kind: TxErrorSerialize, Err: err}
	}
	return raw, nil
}
