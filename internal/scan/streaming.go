package scan

import (
	"context"
)

// Event stages emitted by ScanBatchStreaming
const (
	StageStart    = "start"
	StageItem     = "item"
	StageComplete = "complete"
)

// StreamEvent represents a progressive event during a batch scan
type StreamEvent struct {
	Stage   string      `json:"stage"`   // "start", "item", "complete"
	Message string      `json:"message"` // Human-readable message
	Data    interface{} `json:"data"`    // Stage-specific payload
}

// ItemEvent is the payload of an "item" event
type ItemEvent struct {
	Index  int         `json:"index"`
	Result *ScanResult `json:"result"`
}

// StartEvent is the payload of a "start" event
type StartEvent struct {
	Total int `json:"total"`
}

// ScanBatchStreaming runs a batch and emits one event per finished item, in
// completion order, followed by a complete event carrying the BatchResult.
// Validation happens before the channel is returned.
func (s *Service) ScanBatchStreaming(ctx context.Context, urls []string, includeScreenshots bool) (<-chan StreamEvent, error) {
	if len(urls) == 0 {
		return nil, &ValidationError{Err: ErrNoURLs}
	}
	total := len(urls)
	if total > s.maxURLs {
		total = s.maxURLs
	}

	// sized so workers never block on a slow reader
	events := make(chan StreamEvent, total+2)

	go func() {
		defer close(events)

		events <- StreamEvent{
			Stage:   StageStart,
			Message: "Starting batch...",
			Data:    StartEvent{Total: total},
		}

		batch, err := s.runBatch(ctx, urls, includeScreenshots, func(i int, r *ScanResult) {
			events <- StreamEvent{
				Stage:   StageItem,
				Message: "Scanned " + r.Target,
				Data:    ItemEvent{Index: i, Result: r},
			}
		})
		if err != nil {
			s.logger.Error("Streaming batch failed", "error", err)
			return
		}

		events <- StreamEvent{
			Stage:   StageComplete,
			Message: "Batch complete",
			Data:    batch,
		}
	}()

	return events, nil
}
