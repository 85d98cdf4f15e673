package agent_test

import "encoding/json"

func ptr[T any](v T) *T { return &v }

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	return string(data), err
}
