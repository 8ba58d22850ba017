package reflection

import (
	"errors"
	"fmt"
)

// Suggester is implemented by pipeline errors that carry a fallback action the
// caller can surface next to the error description.
type Suggester interface {
	Suggestion() string
}

// InsufficientEntriesError is raised before any external call when too few
// entries were supplied. Not retryable by the pipeline.
type InsufficientEntriesError struct {
	Minimum int
	Actual  int
}

func (e *InsufficientEntriesError) Error() string {
	return fmt.Sprintf("insufficient entries: need at least %d, got %d", e.Minimum, e.Actual)
}

func (e *InsufficientEntriesError) Suggestion() string {
	return "write at least one journal entry for this mood and timeframe"
}

// TokenLimitExceededError reports an entry still over budget after truncation.
type TokenLimitExceededError struct {
	Used  int
	Limit int
}

func (e *TokenLimitExceededError) Error() string {
	return fmt.Sprintf("token limit exceeded: used %d of %d", e.Used, e.Limit)
}

func (e *TokenLimitExceededError) Suggestion() string {
	return "try fewer entries or Quick mode"
}

// ChunkProcessingFailedError is raised when every chunk in a batch failed;
// partial failure is absorbed and processing continues. Err carries the last
// underlying cause when one is known.
type ChunkProcessingFailedError struct {
	Failed int
	Total  int
	Err    error
}

func (e *ChunkProcessingFailedError) Error() string {
	return fmt.Sprintf("chunk processing failed: %d of %d chunks failed", e.Failed, e.Total)
}

func (e *ChunkProcessingFailedError) Unwrap() error { return e.Err }

func (e *ChunkProcessingFailedError) Suggestion() string {
	return "try fewer entries or Quick mode"
}

// AggregationFailedError means the single aggregation call produced no usable
// content. Fatal; no partial result is returned.
type AggregationFailedError struct {
	Err error
}

func (e *AggregationFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aggregation failed: %v", e.Err)
	}
	return "aggregation failed: no usable content"
}

func (e *AggregationFailedError) Unwrap() error { return e.Err }

func (e *AggregationFailedError) Suggestion() string {
	return "try again or use Quick mode"
}

// InvalidResponseError means a generation call returned content that does not
// decode into the expected structured shape.
type InvalidResponseError struct {
	Operation string
	Err       error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid %s response: %v", e.Operation, e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

func (e *InvalidResponseError) Suggestion() string {
	return "try again"
}

// ProcessingFailedError wraps any other underlying failure with a
// human-readable reason.
type ProcessingFailedError struct {
	Reason string
	Err    error
}

func (e *ProcessingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processing failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("processing failed: %s", e.Reason)
}

func (e *ProcessingFailedError) Unwrap() error { return e.Err }

func (e *ProcessingFailedError) Suggestion() string {
	return "try again or use Quick mode"
}

// SuggestionFor extracts the fallback suggestion from a pipeline error, or a
// generic retry hint for anything else.
func SuggestionFor(err error) string {
	var s Suggester
	if errors.As(err, &s) {
		return s.Suggestion()
	}
	return "try again"
}
