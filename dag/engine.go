// Package dag maintains a directed acyclic graph of LLM-generated text
// nodes, where each node may be refined or synthesized from one or more
// parents, with plans, outputs, and diffs persisted to durable storage.
package dag

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/iterai/iterai-go/dag/store"
)

const evalPromptPrefix = "Rate the following text on a scale from 0 to 1, where 1 is excellent. Respond with only the number.\n\n"

// synthesizePrompt is the default task for a synthesis node when the caller
// supplies none.
const synthesizePrompt = "Combine the best insights from all versions"

// Engine is the orchestration facade over the Graph. It resolves default
// model and system prompt from configuration, drives the
// create/refine/synthesize lifecycle, and bounds concurrent evaluation
// fan-out.
//
// Example:
//
//	cfg := dag.DefaultConfig()
//	engine, err := dag.NewEngine(cfg, dag.WithStore(st))
//	if err != nil {
//	    return err
//	}
//	root, err := engine.CreateRoot(ctx, "Write a haiku about rivers", "", "")
type Engine struct {
	graph *Graph
	cfg   *Config
}

// NewEngine creates an Engine over the given configuration. Without options
// it uses a filesystem store at the configured storage path and a provider
// Router over the configured model registry.
func NewEngine(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var s settings
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	if s.store == nil {
		fsStore, err := store.NewFSStore(cfg.StoragePath())
		if err != nil {
			return nil, err
		}
		s.store = fsStore
	}
	if s.gen == nil {
		s.gen = defaultGenerator(cfg)
	}

	graph, err := NewGraph(cfg, s.store, s.gen, s.emitter, s.metrics)
	if err != nil {
		return nil, err
	}
	return &Engine{graph: graph, cfg: cfg}, nil
}

// Graph returns the underlying graph.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.graph.store.Close()
}

// resolve fills empty model and system prompt values from configuration.
func (e *Engine) resolve(modelName, systemPrompt string) (string, string) {
	if modelName == "" {
		modelName = e.cfg.DefaultModel()
	}
	if systemPrompt == "" {
		systemPrompt = e.cfg.SystemPrompt()
	}
	return modelName, systemPrompt
}

// CreateRoot creates a parentless node, generates its plan and output, and
// persists it along with the graph index.
func (e *Engine) CreateRoot(ctx context.Context, userPrompt, modelName, systemPrompt string) (*Node, error) {
	modelName, systemPrompt = e.resolve(modelName, systemPrompt)

	node := NewNode(userPrompt, systemPrompt, modelName, Standard)
	e.graph.AddNode(node)

	if err := e.graph.Generate(ctx, node); err != nil {
		return nil, err
	}
	if err := e.graph.SaveNode(ctx, node); err != nil {
		return nil, err
	}
	if err := e.graph.saveGraph(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// Refine creates a single-parent child of parent, generates it against the
// parent's output, recomputes diffs, and persists.
func (e *Engine) Refine(ctx context.Context, parent *Node, userPrompt, modelName, systemPrompt string) (*Node, error) {
	modelName, systemPrompt = e.resolve(modelName, systemPrompt)

	node := NewNode(userPrompt, systemPrompt, modelName, Standard)
	e.graph.AddEdge(node, parent)

	if err := e.graph.Generate(ctx, node); err != nil {
		return nil, err
	}
	e.graph.ComputeAllDiffs()
	if err := e.graph.SaveNode(ctx, node); err != nil {
		return nil, err
	}
	if err := e.graph.saveGraph(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// Synthesize creates a child combining all of parents, generates it against
// their joined outputs, recomputes diffs, and persists. An empty userPrompt
// defaults to a generic combination task.
func (e *Engine) Synthesize(ctx context.Context, parents []*Node, userPrompt, modelName, systemPrompt string) (*Node, error) {
	modelName, systemPrompt = e.resolve(modelName, systemPrompt)
	if userPrompt == "" {
		userPrompt = synthesizePrompt
	}

	node := NewNode(userPrompt, systemPrompt, modelName, Synthetic)
	e.graph.AddEdge(node, parents...)

	if err := e.graph.Generate(ctx, node); err != nil {
		return nil, err
	}
	e.graph.ComputeAllDiffs()
	if err := e.graph.SaveNode(ctx, node); err != nil {
		return nil, err
	}
	if err := e.graph.saveGraph(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// EvaluateNode scores the node's output via the backend and persists the
// node. A response that does not parse as a number leaves the score unset
// rather than failing; backend failures propagate.
func (e *Engine) EvaluateNode(ctx context.Context, n *Node, evalModel string) error {
	if evalModel == "" {
		evalModel = e.cfg.GetString("evaluation.model", e.cfg.DefaultModel())
	}

	e.graph.metrics.evalStarted()
	defer e.graph.metrics.evalFinished()

	start := time.Now()
	scoreText, err := e.graph.gen.Generate(ctx, evalModel, evalPromptPrefix+n.Output, "")
	e.graph.metrics.observeGeneration("score", evalModel, start, err)
	if err != nil {
		return &GenerateError{Model: evalModel, Op: "score", Err: err}
	}

	if score, err := strconv.ParseFloat(strings.TrimSpace(scoreText), 64); err == nil {
		n.Score = &score
	} else {
		n.Score = nil
	}

	return e.graph.SaveNode(ctx, n)
}

// EvaluateAll scores the given nodes concurrently, bounded by the configured
// maximum in-flight count. A failed evaluation does not cancel its siblings;
// all failures are aggregated into the returned error.
func (e *Engine) EvaluateAll(ctx context.Context, nodes []*Node, evalModel string) error {
	sem := semaphore.NewWeighted(int64(e.cfg.MaxTasks()))
	var wg sync.WaitGroup
	errs := make([]error, len(nodes))

	for i, n := range nodes {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, n *Node) {
			defer wg.Done()
			defer sem.Release(1)
			errs[i] = e.EvaluateNode(ctx, n, evalModel)
		}(i, n)
	}
	wg.Wait()

	return errors.Join(errs...)
}
