package deadline

import (
	"sort"

	"github.com/pkg/errors"
)

// KeyValuePair is one line of a farm job or plugin info file.
type KeyValuePair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type KeyValuePairSlice []KeyValuePair

func (in KeyValuePairSlice) ToMap() (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range in {
		if _, exists := out[pair.Key]; exists {
			return nil, errors.Errorf("key '%s' is duplicated", pair.Key)
		}
		out[pair.Key] = pair.Value
	}
	return out, nil
}

// Get returns the value of the first pair with the given key.
func (in KeyValuePairSlice) Get(key string) (string, bool) {
	for _, pair := range in {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// MapToKvSlice returns the pairs of the map sorted by key.
func MapToKvSlice(in map[string]string) KeyValuePairSlice {
	out := make(KeyValuePairSlice, 0, len(in))
	for k, v := range in {
		out = append(out, KeyValuePair{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
