package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// EncodeCallback joins action and arg into callback data, enforcing Telegram's size limit.
func EncodeCallback(action, arg string) (string, error) {
	if action == "" {
		return "", errors.New("callback action is empty")
	}
	if strings.Contains(action, CallbackDataSeparator) {
		return "", fmt.Errorf("callback action %q contains the separator", action)
	}

	payload := action
	if arg != "" {
		payload = action + CallbackDataSeparator + arg
	}
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data produced by EncodeCallback.
func DecodeCallback(callbackData string) (action, arg string, err error) {
	callbackData = strings.TrimPrefix(callbackData, "\f")
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	action, arg, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return action, arg, nil
}
