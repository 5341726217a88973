package store

import (
	"bytes"
	"encoding/gob"

	"github.com/royglick/laboneq/pkg/workflow"
)

func init() {
	// Concrete types that commonly appear in run inputs and task outputs.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]float64{})
	gob.Register([]string{})
	gob.Register([]workflow.TaskRecord{})
}

// encodeValue serializes arbitrary Go values using encoding/gob.
// Callers must ensure that values are gob-encodable.
func encodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	// Encode as interface{} so decoding into interface{} round-trips the
	// dynamic type.
	iv := v
	if err := enc.Encode(&iv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeValue is the inverse of encodeValue.
func decodeValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var iv any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&iv); err != nil {
		return nil, err
	}
	return iv, nil
}

func encodeInput(in map[string]any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	return encodeValue(in)
}

func decodeInput(data []byte) (map[string]any, error) {
	v, err := decodeValue(data)
	if err != nil || v == nil {
		return nil, err
	}
	in, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	return in, nil
}

func encodeTasks(tasks []workflow.TaskRecord) ([]byte, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tasks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTasks(data []byte) ([]workflow.TaskRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var tasks []workflow.TaskRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
