package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Dataset is the part of an engine handle the dispatcher needs.
// Implementations must be safe for concurrent use.
type Dataset interface {
	Take(ctx context.Context, indices []uint64) (arrow.Record, error)
}

// Task is one take query against one dataset.
type Task struct {
	Dataset int
	Indices []uint64
}

// BuildTasks assigns query i to dataset i % numDatasets.
func BuildTasks(queries [][]uint64, numDatasets int) []Task {
	if numDatasets <= 0 {
		return nil
	}
	tasks := make([]Task, len(queries))
	for i, q := range queries {
		tasks[i] = Task{Dataset: i % numDatasets, Indices: q}
	}
	return tasks
}

// Phase distinguishes warmup passes from the measured pass.
type Phase int

const (
	PhaseWarmup Phase = iota
	PhaseTimed
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseTimed:
		return "timed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the lifecycle position of a Dispatcher.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateDraining
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// FailurePolicy decides what a failed take contributes to the latency sample.
type FailurePolicy int

const (
	// FailureAsZero records a 0.0 sample for each failed take.
	FailureAsZero FailurePolicy = iota
	// FailureExclude records nothing for a failed take.
	FailureExclude
)

func (p FailurePolicy) String() string {
	switch p {
	case FailureAsZero:
		return "zero"
	case FailureExclude:
		return "exclude"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy accepts "zero" (or "") and "exclude".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return FailureAsZero, nil
	case "exclude":
		return FailureExclude, nil
	default:
		return 0, fmt.Errorf("dispatch: unknown failure policy %q (want zero or exclude)", s)
	}
}

// Result summarizes one Run.
type Result struct {
	Phase Phase
	// Latencies holds one sample in seconds per recorded take, in completion
	// order. Nil for warmup runs.
	Latencies []float64
	// Completed counts tasks that were executed, failed ones included.
	Completed int
	Failures  int
	// Rows is the number of rows returned by successful takes in this run.
	Rows    int64
	Elapsed time.Duration
}

// Throughput returns completed queries per second of wall time.
func (r *Result) Throughput() float64 {
	if r == nil || r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Completed) / r.Elapsed.Seconds()
}
