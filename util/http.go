package util

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// WriteJSON writes a json response with the supplied code on the given writer.
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("{}"))
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(jsonBytes)
}

// GetBoolValue returns a form value as a boolean
func GetBoolValue(r *http.Request, valueKey string, defaultValue bool) (bool, error) {
	val := r.FormValue(valueKey)
	if val == "" {
		return defaultValue, nil
	}
	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue, errors.Errorf("%v: cannot convert %v to boolean: %v", valueKey, val, err.Error())
	}
	return boolVal, nil
}
