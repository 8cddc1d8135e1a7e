package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions will happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Job struct {
	ID         string
	Topic      string
	Payload    json.RawMessage
	Attempts   int
	State      State
	Error      string
	EnqueuedAt time.Time
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as not worth retrying; the job fails right away.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
