package main

import (
	"errors"
	"fmt"
)

// ErrBatchRunning signals that a live process already holds the lock
// for this content type.
var ErrBatchRunning = errors.New("batch processing already running")

// ConfigurationError reports an unusable topics file or content type.
// Fatal at startup, never retried.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TopicProcessingError reports a pipeline failure or timeout for one
// topic. Retryable within the topic's attempt budget.
type TopicProcessingError struct {
	Topic string
	Err   error
}

func (e *TopicProcessingError) Error() string {
	return fmt.Sprintf("processing topic %q: %v", e.Topic, e.Err)
}

func (e *TopicProcessingError) Unwrap() error { return e.Err }

// PublicationError reports that a topic's article could not be
// verified in WordPress. Retryable with the same budget as processing
// errors.
type PublicationError struct {
	Topic  string
	Reason string
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("publication not verified for topic %q: %s", e.Topic, e.Reason)
}

// ResourceExhaustedError reports memory usage still above the hard
// limit after a forced cleanup. Fatal to the session, not per-topic.
type ResourceExhaustedError struct {
	UsageMB float64
	LimitMB float64
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("memory usage too high: %.1fMB (hard limit %.1fMB)", e.UsageMB, e.LimitMB)
}
