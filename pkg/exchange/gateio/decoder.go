package gateio

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
)

// ErrorCode is the code of an error reported inside a server message.
type ErrorCode int

const (
	CodeInvalidRequestBodyFormat ErrorCode = 1
	CodeInvalidArgumentProvided  ErrorCode = 2
	CodeServerSideErrorHappened  ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidRequestBodyFormat:
		return "INVALID_REQUEST_BODY_FORMAT"
	case CodeInvalidArgumentProvided:
		return "INVALID_ARGUMENT_PROVIDED"
	case CodeServerSideErrorHappened:
		return "SERVER_SIDE_ERROR_HAPPENED"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(c)) + ")"
	}
}

// ServerError is the error object of a server message.
type ServerError struct {
	Code    ErrorCode
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// ServerEnvelope is a decoded server message. When Error is set Result is nil.
type ServerEnvelope struct {
	Time    int64
	TimeMs  *int64
	ID      *int64
	Channel string
	Event   string
	Error   *ServerError
	Result  Variant
}

// DecodeError reports a frame that could not be decoded. Nothing from the
// frame is returned alongside it.
type DecodeError struct {
	Raw     string
	Channel string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Channel == "" {
		return "decode frame: " + e.Err.Error()
	}
	return fmt.Sprintf("decode frame on %s: %s", e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errNotObject     = errors.New("frame is not a JSON object")
	errMissingResult = errors.New("missing result")
)

// Decode parses one inbound text frame. The frame is walked as a generic tree
// first: the envelope scalars pick the variant, then only result is bound to it.
func Decode(raw []byte) (*ServerEnvelope, error) {
	env, err := decode(raw)
	if err != nil {
		channel := ""
		if env != nil {
			channel = env.Channel
		}
		return nil, &DecodeError{Raw: string(raw), Channel: channel, Err: err}
	}
	return env, nil
}

// DecodeString is Decode for a frame already held as text.
func DecodeString(raw string) (*ServerEnvelope, error) {
	return Decode([]byte(raw))
}

func decode(data []byte) (*ServerEnvelope, error) {
	if !sonic.Valid(data) {
		return nil, errors.New("malformed JSON")
	}
	if _, typ, _, err := jsonparser.Get(data); err != nil || typ != jsonparser.Object {
		return nil, errNotObject
	}

	env := &ServerEnvelope{}
	var err error

	// channel first so failures further down can name it
	if env.Channel, _, err = readString(data, "channel", true); err != nil {
		return env, err
	}
	if env.Event, _, err = readString(data, "event", true); err != nil {
		return env, err
	}
	if env.Time, _, err = readInt(data, "time", true); err != nil {
		return env, err
	}
	if env.TimeMs, err = readOptionalInt(data, "time_ms"); err != nil {
		return env, err
	}
	if env.ID, err = readOptionalInt(data, "id"); err != nil {
		return env, err
	}

	if errValue, typ, _, getErr := jsonparser.Get(data, "error"); getErr == nil && typ != jsonparser.Null {
		if typ != jsonparser.Object {
			return env, fmt.Errorf("field \"error\": expected object, got %s", typ)
		}
		serverErr, err := decodeServerError(errValue)
		if err != nil {
			return env, err
		}
		env.Error = serverErr
		return env, nil
	}

	kind, err := Resolve(env.Channel, env.Event)
	if err != nil {
		return env, err
	}

	result, typ, _, getErr := jsonparser.Get(data, "result")
	if getErr != nil || typ == jsonparser.Null {
		if kind == KindSubscribeAck {
			env.Result = SubscribeAck{}
			return env, nil
		}
		return env, errMissingResult
	}

	variant, err := decodeResult(kind, result, typ)
	if err != nil {
		return env, fmt.Errorf("result as %s: %w", kind, err)
	}
	env.Result = variant
	return env, nil
}

func decodeServerError(data []byte) (*ServerError, error) {
	code, _, err := readInt(data, "code", true)
	if err != nil {
		return nil, fmt.Errorf("error: %w", err)
	}
	switch ErrorCode(code) {
	case CodeInvalidRequestBodyFormat, CodeInvalidArgumentProvided, CodeServerSideErrorHappened:
	default:
		return nil, fmt.Errorf("error: unknown code %d", code)
	}
	message, _, err := readString(data, "message", false)
	if err != nil {
		return nil, fmt.Errorf("error: %w", err)
	}
	return &ServerError{Code: ErrorCode(code), Message: message}, nil
}

func decodeResult(kind Kind, data []byte, typ jsonparser.ValueType) (Variant, error) {
	switch kind {
	case KindSubscribeAck:
		return decodeObject[SubscribeAck](kind, data, typ)
	case KindTicker:
		return decodeObject[Ticker](kind, data, typ)
	case KindCrossLoan:
		return decodeObject[CrossLoan](kind, data, typ)
	case KindChangedOrderBookLevels:
		return decodeObject[ChangedOrderBookLevels](kind, data, typ)
	case KindUserTradeList:
		items, err := decodeList[UserTrade](kind, data, typ)
		return UserTradeList(items), err
	case KindOrderList:
		items, err := decodeList[Order](kind, data, typ)
		return OrderList(items), err
	case KindCrossBalanceList:
		items, err := decodeList[CrossBalance](kind, data, typ)
		return CrossBalanceList(items), err
	case KindSpotBalanceList:
		items, err := decodeList[SpotBalance](kind, data, typ)
		return SpotBalanceList(items), err
	}
	return nil, fmt.Errorf("no decoder for %s", kind)
}

func decodeObject[T any](kind Kind, data []byte, typ jsonparser.ValueType) (T, error) {
	var out T
	if typ != jsonparser.Object {
		return out, fmt.Errorf("expected object, got %s", typ)
	}
	if err := checkRequired(data, requiredKeys[kind]); err != nil {
		return out, err
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// decodeList accepts an array or a lone object; a lone object becomes a
// one-element list.
func decodeList[T any](kind Kind, data []byte, typ jsonparser.ValueType) ([]T, error) {
	switch typ {
	case jsonparser.Object:
		item, err := decodeObject[T](kind, data, typ)
		if err != nil {
			return nil, err
		}
		return []T{item}, nil
	case jsonparser.Array:
	default:
		return nil, fmt.Errorf("expected array or object, got %s", typ)
	}

	items := []T{}
	var itemErr error
	index := 0
	_, err := jsonparser.ArrayEach(data, func(value []byte, valueType jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil {
			return
		}
		item, err := decodeObject[T](kind, value, valueType)
		if err != nil {
			itemErr = fmt.Errorf("element %d: %w", index, err)
			return
		}
		items = append(items, item)
		index++
	})
	if err != nil {
		return nil, err
	}
	if itemErr != nil {
		return nil, itemErr
	}
	return items, nil
}

func checkRequired(data []byte, keys []string) error {
	for _, key := range keys {
		_, typ, _, err := jsonparser.Get(data, key)
		if err != nil || typ == jsonparser.NotExist {
			return fmt.Errorf("missing field %q", key)
		}
		if typ == jsonparser.Null {
			return fmt.Errorf("field %q is null", key)
		}
	}
	return nil
}

// readInt reads an integer given as a JSON number or a numeric string.
func readInt(data []byte, key string, required bool) (int64, bool, error) {
	value, typ, _, err := jsonparser.Get(data, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || typ == jsonparser.Null {
		if required {
			return 0, false, fmt.Errorf("missing field %q", key)
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("field %q: %w", key, err)
	}

	var n int64
	switch typ {
	case jsonparser.Number:
		n, err = jsonparser.ParseInt(value)
	case jsonparser.String:
		n, err = strconv.ParseInt(string(value), 10, 64)
	default:
		return 0, false, fmt.Errorf("field %q: expected integer, got %s", key, typ)
	}
	if err != nil {
		return 0, false, fmt.Errorf("field %q: expected integer, got %s", key, value)
	}
	return n, true, nil
}

func readOptionalInt(data []byte, key string) (*int64, error) {
	n, ok, err := readInt(data, key, false)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

// readString reads a string value, unescaped. Invalid UTF-8 is rejected.
func readString(data []byte, key string, required bool) (string, bool, error) {
	value, typ, _, err := jsonparser.Get(data, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || typ == jsonparser.Null {
		if required {
			return "", false, fmt.Errorf("missing field %q", key)
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("field %q: %w", key, err)
	}
	if typ != jsonparser.String {
		return "", false, fmt.Errorf("field %q: expected string, got %s", key, typ)
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return "", false, fmt.Errorf("field %q: %w", key, err)
	}
	if !utf8.ValidString(s) {
		return "", false, fmt.Errorf("field %q: invalid UTF-8", key)
	}
	return s, true, nil
}
