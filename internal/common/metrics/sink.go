// internal/common/metrics/sink.go
// Package metrics defines the injected metrics sink used by the dispatch
// orchestrator and the distribution cronjob. Nothing here registers global
// collectors; tests assert on call counts through the Recorder.
package metrics

import (
	"sync"
	"time"
)

// Sink receives domain-level measurements.
type Sink interface {
	// IncDispatched counts one notification handed to a channel.
	IncDispatched(channel, kind string)
	// IncDispatchFailed counts one failed use case by error code.
	IncDispatchFailed(kind, errorCode string)
	// IncDistribution counts one cronjob row outcome ("updated" or "failed").
	IncDistribution(result string)
	// ObserveUseCase records the duration of one lifecycle use case.
	ObserveUseCase(operation string, d time.Duration)
}

// NopSink discards every measurement.
type NopSink struct{}

func (NopSink) IncDispatched(string, string)         {}
func (NopSink) IncDispatchFailed(string, string)     {}
func (NopSink) IncDistribution(string)               {}
func (NopSink) ObserveUseCase(string, time.Duration) {}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu           sync.Mutex
	Dispatched   map[string]int // key: channel + "/" + kind
	Failed       map[string]int // key: kind + "/" + errorCode
	Distribution map[string]int // key: result
	UseCases     map[string]int // key: operation
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Dispatched:   map[string]int{},
		Failed:       map[string]int{},
		Distribution: map[string]int{},
		UseCases:     map[string]int{},
	}
}

func (r *Recorder) IncDispatched(channel, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dispatched[channel+"/"+kind]++
}

func (r *Recorder) IncDispatchFailed(kind, errorCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed[kind+"/"+errorCode]++
}

func (r *Recorder) IncDistribution(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Distribution[result]++
}

func (r *Recorder) ObserveUseCase(operation string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UseCases[operation]++
}

// DispatchedCount returns the recorded count for a channel/kind pair.
func (r *Recorder) DispatchedCount(channel, kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Dispatched[channel+"/"+kind]
}
