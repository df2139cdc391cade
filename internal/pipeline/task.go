package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/source"
)

// Action computes a task's output from its dependency's output. Extract
// actions receive nil.
type Action func(ctx context.Context, in *dataset.Dataset) (*dataset.Dataset, error)

// Task is one node of the graph.
type Task struct {
	Key    model.TaskKey
	Action Action
}

// Loader writes a cleaned dataset to the warehouse table of its domain and
// returns the dataset as written.
type Loader interface {
	Load(ctx context.Context, domain model.Domain, ds *dataset.Dataset) (*dataset.Dataset, error)
}

// Graph holds the tasks of a run keyed by (domain, stage). Edges follow
// model.TaskKey.Upstream.
type Graph struct {
	tasks map[model.TaskKey]*Task
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[model.TaskKey]*Task)}
}

// Add registers a task, replacing any task with the same key.
func (g *Graph) Add(t *Task) {
	g.tasks[t.Key] = t
}

// Task returns the task of key.
func (g *Graph) Task(key model.TaskKey) (*Task, bool) {
	t, ok := g.tasks[key]
	return t, ok
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// BuildGraph wires extract, transform and load tasks for every domain that
// has a source.
func BuildGraph(sources map[model.Domain]source.Source, loader Loader) (*Graph, error) {
	if loader == nil {
		return nil, eris.New("loader is required")
	}
	g := NewGraph()
	for _, domain := range model.Domains {
		src, ok := sources[domain]
		if !ok {
			continue
		}
		domain := domain
		g.Add(&Task{
			Key: model.TaskKey{Domain: domain, Stage: model.StageExtract},
			Action: func(ctx context.Context, _ *dataset.Dataset) (*dataset.Dataset, error) {
				return src.Extract(ctx)
			},
		})
		g.Add(&Task{
			Key: model.TaskKey{Domain: domain, Stage: model.StageTransform},
			Action: func(_ context.Context, in *dataset.Dataset) (*dataset.Dataset, error) {
				return Clean(domain, in)
			},
		})
		g.Add(&Task{
			Key: model.TaskKey{Domain: domain, Stage: model.StageLoad},
			Action: func(ctx context.Context, in *dataset.Dataset) (*dataset.Dataset, error) {
				return loader.Load(ctx, domain, in)
			},
		})
	}
	if g.Len() == 0 {
		return nil, eris.New("no sources configured")
	}
	return g, nil
}
