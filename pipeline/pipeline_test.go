package pipeline

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestGraphTopologicalOrder(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	task := func(name string, inputs, outputs []string) *Task {
		return &Task{
			Name:    name,
			Inputs:  inputs,
			Outputs: outputs,
			Run: func(ctx context.Context) error {
				mu.Lock()
				ran = append(ran, name)
				mu.Unlock()
				return nil
			},
		}
	}
	var g Graph
	g.Add(task("consume", []string{"a.tsv", "b.tsv"}, []string{"c.tsv"}))
	g.Add(task("makeA", nil, []string{"a.tsv"}))
	g.Add(task("makeB", nil, []string{"b.tsv"}))
	g.Add(task("final", []string{"c.tsv"}, []string{"d.tsv"}))

	status, err := g.Run(context.Background(), 2)
	assert.NoError(t, err)
	expect.EQ(t, len(ran), 4)
	pos := map[string]int{}
	for i, name := range ran {
		pos[name] = i
	}
	expect.True(t, pos["makeA"] < pos["consume"])
	expect.True(t, pos["makeB"] < pos["consume"])
	expect.True(t, pos["consume"] < pos["final"])
	for name, st := range status {
		expect.EQ(t, st, Done, "task %s", name)
	}
}

func TestGraphFailureSkipsDependentsOnly(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	run := func(name string, fail bool) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			if fail {
				return fmt.Errorf("boom")
			}
			return nil
		}
	}
	var g Graph
	g.Add(&Task{Name: "bad", Outputs: []string{"x"}, Run: run("bad", true)})
	g.Add(&Task{Name: "child", Inputs: []string{"x"}, Outputs: []string{"y"}, Run: run("child", false)})
	g.Add(&Task{Name: "grandchild", Inputs: []string{"y"}, Outputs: []string{"z"}, Run: run("grandchild", false)})
	g.Add(&Task{Name: "independent", Outputs: []string{"w"}, Run: run("independent", false)})

	status, err := g.Run(context.Background(), 1)
	expect.True(t, err != nil)
	expect.EQ(t, status["bad"], Failed)
	expect.EQ(t, status["child"], Skipped)
	expect.EQ(t, status["grandchild"], Skipped)
	expect.EQ(t, status["independent"], Done)
	for _, name := range ran {
		expect.True(t, name != "child" && name != "grandchild")
	}
}

func TestGraphRejectsDuplicateWriters(t *testing.T) {
	var g Graph
	g.Add(&Task{Name: "a", Outputs: []string{"same"}, Run: func(ctx context.Context) error { return nil }})
	g.Add(&Task{Name: "b", Outputs: []string{"same"}, Run: func(ctx context.Context) error { return nil }})
	_, err := g.Run(context.Background(), 1)
	expect.True(t, err != nil)
}

func TestGraphDetectsCycle(t *testing.T) {
	var g Graph
	g.Add(&Task{Name: "a", Inputs: []string{"b.out"}, Outputs: []string{"a.out"}, Run: func(ctx context.Context) error { return nil }})
	g.Add(&Task{Name: "b", Inputs: []string{"a.out"}, Outputs: []string{"b.out"}, Run: func(ctx context.Context) error { return nil }})
	_, err := g.Run(context.Background(), 1)
	expect.True(t, err != nil)
}

func TestAtomicCommitAndAbort(t *testing.T) {
	dir, err := ioutil.TempDir("", "atomic_test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck

	path := filepath.Join(dir, "out.tsv")
	a, err := CreateAtomic(path)
	assert.NoError(t, err)
	_, err = a.Write([]byte("chr1\t1\t2\n"))
	assert.NoError(t, err)
	// Not visible until committed.
	_, err = os.Stat(path)
	expect.True(t, os.IsNotExist(err))
	assert.NoError(t, a.Commit())
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(data), "chr1\t1\t2\n")
	a.Abort() // after Commit: no-op

	b, err := CreateAtomic(filepath.Join(dir, "never.tsv"))
	assert.NoError(t, err)
	_, err = b.Write([]byte("partial"))
	assert.NoError(t, err)
	b.Abort()
	_, err = os.Stat(filepath.Join(dir, "never.tsv"))
	expect.True(t, os.IsNotExist(err))
	// No temp litter either.
	files, err := ioutil.ReadDir(dir)
	assert.NoError(t, err)
	expect.EQ(t, len(files), 1)
}
