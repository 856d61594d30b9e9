package gt06

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"

	"gt06gateway/internal/core/model"
)

const (
	defaultPassword = "123456"
	defaultAPN      = "internet"
	defaultServer   = "localhost"
	defaultPort     = 5027
	defaultInterval = 30

	languageEnglish = 0x0002
)

// Encoder builds outbound frames. Every frame takes the next value of a
// shared sequence counter that runs 1..0xFFFF and wraps back to 1.
type Encoder struct {
	mutex sync.Mutex
	index uint16
}

func NewEncoder() *Encoder {
	return &Encoder{index: 1}
}

func (e *Encoder) nextIndex() uint16 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	i := e.index
	if e.index == 0xFFFF {
		e.index = 1
	} else {
		e.index++
	}
	return i
}

// EncodeCommand validates cmd and encodes it as a text command frame
func (e *Encoder) EncodeCommand(cmd *model.Command) ([]byte, error) {
	text, err := CommandText(cmd.Type, cmd.Parameters)
	if err != nil {
		return nil, err
	}
	return e.EncodeText(text, boolParam(cmd.Parameters, "language"))
}

// EncodeText wraps a free-text command: length, 4-byte server flag, ASCII text
// and an optional language word.
func (e *Encoder) EncodeText(text string, language bool) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: command text is required", ErrInvalidParameter)
	}
	// declared length = type + cmdLen + flag + text + language + index + crc
	langSize := 0
	if language {
		langSize = 2
	}
	if 1+1+4+len(text)+langSize+4 > 0xFF {
		return nil, fmt.Errorf("%w: command text of %d bytes is too long", ErrInvalidParameter, len(text))
	}

	payload := make([]byte, 0, 1+4+len(text)+langSize)
	payload = append(payload, byte(4+len(text)))
	payload = append(payload, 0, 0, 0, 0)
	payload = append(payload, text...)
	if language {
		payload = append(payload, byte(languageEnglish>>8), byte(languageEnglish))
	}
	return BuildFrame(HeaderBasic, MsgCommand0, payload, e.nextIndex())
}

// EncodeResponse builds the binary reply to an inbound frame in the same
// header family. The inbound index is echoed back, not drawn from a counter.
func EncodeResponse(f *Frame, msgType byte, content []byte) ([]byte, error) {
	header := HeaderBasic
	if f.Extended() {
		header = HeaderExtended
	}
	return BuildFrame(header, msgType, content, f.Index)
}

// CommandText renders the device command string for a command type
func CommandText(commandType string, params map[string]interface{}) (string, error) {
	password, err := stringParam(params, "password", defaultPassword)
	if err != nil {
		return "", err
	}

	switch commandType {
	case model.CommandEngineStop, model.CommandEngineResume:
		return engineText(commandType == model.CommandEngineStop, password, params)
	case model.CommandReboot:
		return fmt.Sprintf("RESET,%s#", password), nil
	case model.CommandFactoryReset:
		return fmt.Sprintf("FACTORY,%s#", password), nil
	case model.CommandSetTimezone:
		tz, err := numberParam(params, "timezone", 0)
		if err != nil {
			return "", err
		}
		if tz < -12 || tz > 12 {
			return "", fmt.Errorf("%w: timezone must be between -12 and 12, got %v", ErrInvalidParameter, tz)
		}
		return fmt.Sprintf("TIMEZONE,%s,%s#", password, strconv.FormatFloat(tz, 'f', -1, 64)), nil
	case model.CommandSetAPN:
		return apnText(password, params)
	case model.CommandSetServer:
		server, err := stringParam(params, "server", defaultServer)
		if err != nil {
			return "", err
		}
		port, err := intParam(params, "port", defaultPort)
		if err != nil {
			return "", err
		}
		if port < 1 || port > 65535 {
			return "", fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidParameter, port)
		}
		return fmt.Sprintf("SERVER,%s,%s,%d#", password, server, port), nil
	case model.CommandSetInterval:
		interval, err := intParam(params, "interval", defaultInterval)
		if err != nil {
			return "", err
		}
		if interval < 10 || interval > 3600 {
			return "", fmt.Errorf("%w: interval must be between 10 and 3600 seconds, got %d", ErrInvalidParameter, interval)
		}
		return fmt.Sprintf("TIMER,%s,%d#", password, interval), nil
	case model.CommandGetVersion:
		return fmt.Sprintf("VERSION,%s#", password), nil
	case model.CommandGetStatus:
		return fmt.Sprintf("STATUS,%s#", password), nil
	case model.CommandCustom:
		text, err := stringParam(params, "command", "")
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", fmt.Errorf("%w: custom command text is required", ErrInvalidParameter)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, commandType)
	}
}

func engineText(stop bool, password string, params map[string]interface{}) (string, error) {
	deviceModel, err := stringParam(params, "model", "")
	if err != nil {
		return "", err
	}
	switch {
	case deviceModel == "G109":
		if stop {
			return "DYD#", nil
		}
		return "HFYD#", nil
	case boolParam(params, "alternative"):
		if stop {
			return fmt.Sprintf("DYD,%s#", password), nil
		}
		return fmt.Sprintf("HFYD,%s#", password), nil
	}
	if stop {
		return "Relay,1#", nil
	}
	return "Relay,0#", nil
}

func apnText(password string, params map[string]interface{}) (string, error) {
	apn, err := stringParam(params, "apn", defaultAPN)
	if err != nil {
		return "", err
	}
	user, err := stringParam(params, "username", "")
	if err != nil {
		return "", err
	}
	pass, err := stringParam(params, "apnPassword", "")
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("APN,%s,%s", password, apn)
	if user != "" {
		text += "," + user
		if pass != "" {
			text += "," + pass
		}
	}
	return text + "#", nil
}

func stringParam(params map[string]interface{}, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return def, nil
		}
		return s, nil
	case json.Number:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	}
	return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParameter, key)
}

func numberParam(params map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, key, err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidParameter, key)
	}
	return f, nil
}

func intParam(params map[string]interface{}, key string, def int) (int, error) {
	f, err := numberParam(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidParameter, key)
	}
	return int(f), nil
}

func boolParam(params map[string]interface{}, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
