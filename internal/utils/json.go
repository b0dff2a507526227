package utils

import (
	"github.com/goccy/go-json"

	"nightcircle/internal/logging"
)

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// ToJSON marshals v, returning nil on failure after logging it.
func ToJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		LogError(err, "ToJSON")
		return nil
	}
	return data
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		logging.Error().Err(err).Str("context", context).Msg("operation failed")
	}
}
