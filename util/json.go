package util

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ReadJSONInto reads the whole reader and unmarshals the JSON it holds into
// data.
func ReadJSONInto(r io.Reader, data interface{}) error {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading JSON")
	}
	return errors.Wrap(json.Unmarshal(bytes, data), "unmarshalling JSON")
}
