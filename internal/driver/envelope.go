package driver

import (
	"fmt"

	"github.com/Liyixin95/polars/internal/frame"
)

// Envelope is the response wrapper used by document-RPC drivers: the rows
// live under "result" next to status and timing metadata.
type Envelope struct {
	Result []frame.Record `json:"result"`
	Status string         `json:"status"`
	Time   string         `json:"time"`
}

const statusOK = "OK"

// MalformedResultError reports an envelope whose status is not the success
// marker, carrying the envelope's metadata for diagnosis.
type MalformedResultError struct {
	Status string
	Time   string
}

func (e *MalformedResultError) Error() string {
	if e.Time != "" {
		return fmt.Sprintf("driver: query returned status %q (time %s)", e.Status, e.Time)
	}
	return fmt.Sprintf("driver: query returned status %q", e.Status)
}

// Unwrap strips driver-specific response wrapping and exposes the raw row
// mappings. A bare record sequence passes through unchanged, which makes
// the operation idempotent; enveloped responses have each envelope's status
// checked and their results concatenated in order.
func Unwrap(raw any) ([]frame.Record, error) {
	switch resp := raw.(type) {
	case nil:
		return nil, nil

	case []frame.Record:
		return resp, nil

	case []map[string]any:
		records := make([]frame.Record, len(resp))
		for i, m := range resp {
			records[i] = frame.Record(m)
		}
		return records, nil

	case Envelope:
		return unwrapEnvelope(resp)

	case []Envelope:
		var records []frame.Record
		for _, env := range resp {
			rows, err := unwrapEnvelope(env)
			if err != nil {
				return nil, err
			}
			records = append(records, rows...)
		}
		return records, nil

	case []any:
		var records []frame.Record
		for _, elem := range resp {
			rows, err := Unwrap(elem)
			if err != nil {
				return nil, err
			}
			records = append(records, rows...)
		}
		return records, nil

	case map[string]any:
		env, ok := envelopeFromMap(resp)
		if !ok {
			// A single bare record.
			return []frame.Record{frame.Record(resp)}, nil
		}
		return unwrapEnvelope(env)

	case frame.Record:
		env, ok := envelopeFromMap(resp)
		if !ok {
			return []frame.Record{resp}, nil
		}
		return unwrapEnvelope(env)

	default:
		return nil, fmt.Errorf("driver: unrecognized result shape %T", raw)
	}
}

func unwrapEnvelope(env Envelope) ([]frame.Record, error) {
	if env.Status != statusOK {
		return nil, &MalformedResultError{Status: env.Status, Time: env.Time}
	}
	return env.Result, nil
}

// envelopeFromMap recognizes a decoded envelope by its result/status fields.
func envelopeFromMap(m map[string]any) (Envelope, bool) {
	rawResult, hasResult := m["result"]
	rawStatus, hasStatus := m["status"]
	if !hasResult || !hasStatus {
		return Envelope{}, false
	}

	env := Envelope{}
	env.Status, _ = rawStatus.(string)
	env.Time, _ = m["time"].(string)

	switch rows := rawResult.(type) {
	case []frame.Record:
		env.Result = rows
	case []map[string]any:
		for _, row := range rows {
			env.Result = append(env.Result, frame.Record(row))
		}
	case []any:
		for _, row := range rows {
			rec, ok := row.(map[string]any)
			if !ok {
				return Envelope{}, false
			}
			env.Result = append(env.Result, frame.Record(rec))
		}
	case nil:
		env.Result = nil
	default:
		return Envelope{}, false
	}
	return env, true
}
