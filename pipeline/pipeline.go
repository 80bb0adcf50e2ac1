// Package pipeline runs a DAG of file-producing tasks.  Each task is a pure
// function of its declared input files and parameters; a task starts only
// after every producer of its inputs has completed, tasks with no data
// dependency run in parallel, and a failure skips only the dependent
// subgraph.  Writers use atomic visibility-on-success (see Atomic) so a
// consumer never reads a partial output.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Task is one node of the DAG: a named stage consuming Inputs and
// materializing Outputs.  Run must leave every output fully written on
// success and no visible output on failure.
type Task struct {
	Name    string
	Inputs  []string
	Outputs []string
	Run     func(ctx context.Context) error
}

// Status describes a task's terminal state after Graph.Run.
type Status int

// Task states.
const (
	// Pending tasks were never reached (only possible on dependency cycles).
	Pending Status = iota
	Done
	Failed
	// Skipped tasks had a failed or skipped upstream producer.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Graph is a set of tasks wired by filename: a task depends on every task
// producing one of its inputs.  Inputs with no producer are assumed to
// pre-exist (external configuration files).
type Graph struct {
	tasks []*Task
}

// Add registers a task.  No two tasks may declare the same output path.
func (g *Graph) Add(t *Task) { g.tasks = append(g.tasks, t) }

// Run executes the graph with at most parallelism concurrent tasks per
// topological level.  It returns the terminal status of every task by name,
// and the first stage error encountered (remaining independent branches
// still run to completion).
func (g *Graph) Run(ctx context.Context, parallelism int) (map[string]Status, error) {
	producer := make(map[string]*Task)
	for _, t := range g.tasks {
		for _, out := range t.Outputs {
			if prev, ok := producer[out]; ok {
				return nil, fmt.Errorf("pipeline: tasks %s and %s both write %s", prev.Name, t.Name, out)
			}
			producer[out] = t
		}
	}
	deps := make(map[*Task][]*Task)
	indegree := make(map[*Task]int)
	dependents := make(map[*Task][]*Task)
	for _, t := range g.tasks {
		seen := make(map[*Task]bool)
		for _, in := range t.Inputs {
			p := producer[in]
			if p == nil || p == t || seen[p] {
				continue
			}
			seen[p] = true
			deps[t] = append(deps[t], p)
			dependents[p] = append(dependents[p], t)
			indegree[t]++
		}
	}

	status := make(map[*Task]Status)
	var mu sync.Mutex
	var firstErr error
	ready := make([]*Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		if indegree[t] == 0 {
			ready = append(ready, t)
		}
	}
	scheduled := 0
	for len(ready) != 0 {
		level := ready
		ready = nil
		scheduled += len(level)
		// Tasks in one level have no data dependencies on each other;
		// run them in parallel.
		_ = traverse.Limit(parallelism).Each(len(level), func(i int) error {
			t := level[i]
			mu.Lock()
			st := status[t]
			mu.Unlock()
			if st == Skipped {
				return nil
			}
			log.Printf("pipeline: running %s", t.Name)
			if err := t.Run(ctx); err != nil {
				err = errors.E(err, "stage", t.Name)
				log.Error.Printf("pipeline: %v", err)
				mu.Lock()
				status[t] = Failed
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			status[t] = Done
			mu.Unlock()
			return nil
		})
		for _, t := range level {
			failed := status[t] == Failed || status[t] == Skipped
			for _, d := range dependents[t] {
				if failed {
					status[d] = Skipped
				}
				indegree[d]--
				if indegree[d] == 0 {
					ready = append(ready, d)
				}
			}
		}
	}
	if scheduled != len(g.tasks) {
		return nil, fmt.Errorf("pipeline: dependency cycle among %d tasks", len(g.tasks)-scheduled)
	}
	byName := make(map[string]Status, len(g.tasks))
	for _, t := range g.tasks {
		byName[t.Name] = status[t]
	}
	return byName, firstErr
}
