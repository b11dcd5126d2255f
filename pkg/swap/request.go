package swap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"cosmossdk.io/math"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var requiredFields = []string{"inputMint", "outputMint", "amount"}

var (
	errEmptyBody   = errors.New("request body is empty")
	errNotAnObject = errors.New("expected a JSON object")
)

// Request is a validated swap intent.
type Request struct {
	InputMint       string          `json:"inputMint" validate:"required"`
	OutputMint      string          `json:"outputMint" validate:"required"`
	Amount          uint64          `json:"amount" validate:"gt=0"`
	UserPublicKey   string          `json:"userPublicKey,omitempty"`
	SlippageBps     int             `json:"slippageBps" default:"50" validate:"gte=0,lte=10000"`
	SwapMode        string          `json:"swapMode,omitempty" validate:"omitempty,oneof=ExactIn ExactOut"`
	DynamicSlippage json.RawMessage `json:"dynamicSlippage,omitempty"`
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseBody accepts a raw byte payload, a text payload or an already decoded
// object and returns its top-level fields.
func ParseBody(body any) (map[string]json.RawMessage, error) {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	case json.RawMessage:
		raw = b
	case map[string]json.RawMessage:
		if len(b) == 0 {
			return nil, errEmptyBody
		}
		return b, nil
	case map[string]any:
		if len(b) == 0 {
			return nil, errEmptyBody
		}
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		raw = encoded
	default:
		return nil, fmt.Errorf("unsupported body type %T", body)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errEmptyBody
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	if _, ok := decoded.(map[string]any); !ok {
		return nil, errNotAnObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// MissingFields lists absent or null required fields in declaration order.
func MissingFields(fields map[string]json.RawMessage) []string {
	var missing []string
	for _, name := range requiredFields {
		if isAbsent(fields, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func isAbsent(fields map[string]json.RawMessage, name string) bool {
	v, ok := fields[name]
	return !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// FieldError reports a present field with an unusable value.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// DecodeRequest builds a Request from parsed fields. Required fields must
// already be known present.
func DecodeRequest(fields map[string]json.RawMessage) (*Request, error) {
	req := new(Request)
	if err := defaults.Set(req); err != nil {
		return nil, err
	}

	if err := decodeString(fields, "inputMint", &req.InputMint); err != nil {
		return nil, err
	}
	if err := decodeString(fields, "outputMint", &req.OutputMint); err != nil {
		return nil, err
	}
	amount, err := ParseAmount(fields["amount"])
	if err != nil {
		return nil, &FieldError{Field: "amount", Err: err}
	}
	req.Amount = amount

	if err := decodeString(fields, "userPublicKey", &req.UserPublicKey); err != nil {
		return nil, err
	}
	if err := decodeString(fields, "swapMode", &req.SwapMode); err != nil {
		return nil, err
	}
	if !isAbsent(fields, "slippageBps") {
		bps, err := parseInt(fields["slippageBps"])
		if err != nil {
			return nil, &FieldError{Field: "slippageBps", Err: err}
		}
		req.SlippageBps = bps
	}
	if !isAbsent(fields, "dynamicSlippage") {
		req.DynamicSlippage = fields["dynamicSlippage"]
	}

	if err := requestValidator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &FieldError{Field: verrs[0].Field(), Err: describeTag(verrs[0])}
		}
		return nil, err
	}
	return req, nil
}

func decodeString(fields map[string]json.RawMessage, name string, dst *string) error {
	if isAbsent(fields, name) {
		return nil
	}
	if err := json.Unmarshal(fields[name], dst); err != nil {
		return &FieldError{Field: name, Err: errors.New("must be a string")}
	}
	*dst = strings.TrimSpace(*dst)
	return nil
}

// ParseAmount accepts a JSON number or a numeric string of base units.
func ParseAmount(raw json.RawMessage) (uint64, error) {
	n, err := parseBigInt(raw)
	if err != nil {
		return 0, err
	}
	if !n.IsPositive() {
		return 0, errors.New("must be greater than zero")
	}
	if !n.IsUint64() {
		return 0, errors.New("exceeds u64 range")
	}
	return n.Uint64(), nil
}

func parseInt(raw json.RawMessage) (int, error) {
	n, err := parseBigInt(raw)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() || n.Int64() > 1<<31-1 || n.Int64() < -(1<<31) {
		return 0, errors.New("out of range")
	}
	return int(n.Int64()), nil
}

func parseBigInt(raw json.RawMessage) (math.Int, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return math.Int{}, err
		}
		text = strings.TrimSpace(s)
	}
	digits, ok := normalizeDecimal(text)
	if !ok {
		return math.Int{}, fmt.Errorf("%q is not an integer", text)
	}
	n, ok := math.NewIntFromString(digits)
	if !ok {
		return math.Int{}, fmt.Errorf("%q is not an integer", text)
	}
	return n, nil
}

// normalizeDecimal rejects the base prefixes and digit separators big.Int
// would otherwise accept, and strips leading zeros so "0100" stays decimal.
func normalizeDecimal(s string) (string, bool) {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0", true
	}
	return sign + s, true
}

func describeTag(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return errors.New("must not be empty")
	case "gt":
		return fmt.Errorf("must be greater than %s", fe.Param())
	case "gte", "lte":
		return errors.New("must be between 0 and 10000")
	case "oneof":
		return fmt.Errorf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Errorf("failed %s check", fe.Tag())
	}
}
