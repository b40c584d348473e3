package store

import (
	"encoding/json"
	"errors"
	"time"
)

// Status marks whether a precomputation for a key produced a value or a
// recorded failure.
type Status string

const (
	// StatusOk indicates the entry holds a successfully computed value.
	StatusOk Status = "ok"
	// StatusFailed indicates the computation for this key failed; the
	// entry records the failure message instead of a value.
	StatusFailed Status = "failed"
)

// Entry is one cached result, owned by the Store. The scheduler inserts
// entries; readers never mutate them.
type Entry struct {
	Key        string          `json:"-"`
	Status     Status          `json:"status"`
	Value      json.RawMessage `json:"value,omitempty"`
	Err        string          `json:"error,omitempty"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Ok builds a successful entry for key holding the serialized value.
func Ok(key string, value json.RawMessage) Entry {
	return Entry{
		Key:        key,
		Status:     StatusOk,
		Value:      value,
		ComputedAt: time.Now().UTC(),
	}
}

// Failed builds an entry recording a computation failure for key.
func Failed(key string, err error) Entry {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Entry{
		Key:        key,
		Status:     StatusFailed,
		Err:        msg,
		ComputedAt: time.Now().UTC(),
	}
}

// validate checks structural invariants on a rehydrated entry.
func (e Entry) validate() error {
	switch e.Status {
	case StatusOk:
		if len(e.Value) == 0 {
			return errors.New("ok entry has no value")
		}
	case StatusFailed:
		if e.Err == "" {
			return errors.New("failed entry has no error message")
		}
	default:
		return errors.New("unknown status " + string(e.Status))
	}
	return nil
}
