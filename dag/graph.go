package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/iterai/iterai-go/dag/emit"
	"github.com/iterai/iterai-go/dag/model"
	"github.com/iterai/iterai-go/dag/store"
)

// parentJoinSeparator joins multiple parent outputs, both when composing a
// synthesis prompt and when building the combined diff reference.
const parentJoinSeparator = "\n\n---\n\n"

// Graph owns the node collection and its topology, generation, diff, and
// persistence operations.
//
// The node map is guarded by an RWMutex so generation and batch evaluation
// may run from multiple goroutines. Concurrent writers to the same node id
// are serialized by the graph lock; the acyclic property holds by
// construction since edges only ever point at existing nodes.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[uuid.UUID]*Node
	store   store.Store
	gen     model.Generator
	cfg     *Config
	emitter emit.Emitter
	metrics *Metrics
}

// NewGraph creates a Graph over the given collaborators and loads any
// previously persisted nodes from the store. Ids present in the graph index
// but missing node content are skipped.
func NewGraph(cfg *Config, st store.Store, gen model.Generator, emitter emit.Emitter, metrics *Metrics) (*Graph, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	g := &Graph{
		nodes:   make(map[uuid.UUID]*Node),
		store:   st,
		gen:     gen,
		cfg:     cfg,
		emitter: emitter,
		metrics: metrics,
	}
	if err := g.load(context.Background()); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) load(ctx context.Context) error {
	doc, err := g.store.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph index: %w", err)
	}

	for id := range doc.Nodes {
		rec, err := g.store.LoadNode(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Index entry without content; the index is only a cache.
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load node %s: %w", id, err)
		}
		node, err := nodeFromRecord(rec)
		if err != nil {
			continue
		}
		g.AddNode(node)
	}
	return nil
}

// AddNode registers the node in the graph, keyed by id. Re-registration with
// the same id overwrites and is idempotent. For each of the node's parent
// ids already present in the graph, the node is appended to that parent's
// children.
func (g *Graph) AddNode(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(n)
}

func (g *Graph) addNodeLocked(n *Node) {
	g.nodes[n.ID] = n
	for _, pid := range n.ParentIDs {
		if parent, ok := g.nodes[pid]; ok {
			parent.addChild(n.ID)
		}
	}
	g.metrics.setNodes(len(g.nodes))
}

// AddEdge attaches child to one or more parents. The child's ParentIDs are
// set to the parents' ids in the order given, overwriting any prior value;
// more than one parent forces the child's type to Synthetic. The child is
// registered in the graph and appended to each parent's children, both
// idempotently.
func (g *Graph) AddEdge(child *Node, parents ...*Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]uuid.UUID, len(parents))
	for i, p := range parents {
		ids[i] = p.ID
	}
	child.ParentIDs = ids
	if len(parents) > 1 {
		child.Type = Synthetic
	}

	g.addNodeLocked(child)

	for _, p := range parents {
		p.addChild(child.ID)
	}
}

// Generator returns the generation backend the graph was built with.
func (g *Graph) Generator() model.Generator {
	return g.gen
}

// Get returns the node with the given id, or ErrNodeNotFound.
func (g *Graph) Get(id uuid.UUID) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns a snapshot of all nodes in the graph.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Generate populates the node's plan, output, and effective model in place.
//
// The model and system prompt resolve node-first, then configuration
// defaults. Generation is strictly sequential within a node: the plan text
// feeds step conversion, and the composed prompt feeds the final output.
// When the node has parents, resolvable parent outputs are joined under a
// "Previous version(s):" header ahead of the task; dangling parent ids are
// skipped. Any backend failure aborts the whole operation.
//
// Plan, output, and model are committed under the graph lock so batch
// generation may read sibling outputs concurrently.
func (g *Graph) Generate(ctx context.Context, n *Node) error {
	modelName := n.Model
	if modelName == "" {
		modelName = g.cfg.DefaultModel()
	}
	systemPrompt := n.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = g.cfg.SystemPrompt()
	}

	start := time.Now()

	planStart := time.Now()
	planText, err := GeneratePlan(ctx, g.gen, modelName, n.UserPrompt, systemPrompt)
	g.metrics.observeGeneration("plan", modelName, planStart, err)
	if err != nil {
		g.emitFailure(n.ID, "node.generate", modelName, start, err)
		return err
	}

	stepsStart := time.Now()
	steps, parsed, err := GenerateSteps(ctx, g.gen, modelName, planText, systemPrompt)
	g.metrics.observeGeneration("steps", modelName, stepsStart, err)
	if err != nil {
		g.emitFailure(n.ID, "node.generate", modelName, start, err)
		return err
	}
	if !parsed {
		g.metrics.stepFallback()
	}
	g.mu.Lock()
	n.Plan = steps
	g.mu.Unlock()

	prompt := g.composePrompt(n)

	outputStart := time.Now()
	output, err := g.gen.Generate(ctx, modelName, prompt, systemPrompt)
	g.metrics.observeGeneration("output", modelName, outputStart, err)
	if err != nil {
		err = &GenerateError{Model: modelName, Op: "output", Err: err}
		g.emitFailure(n.ID, "node.generate", modelName, start, err)
		return err
	}

	g.mu.Lock()
	n.Output = output
	n.Model = modelName
	g.mu.Unlock()

	g.emitter.Emit(emit.Event{
		NodeID: n.ID.String(),
		Msg:    "node.generate",
		Meta: map[string]interface{}{
			"model":       modelName,
			"steps":       len(steps),
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	return nil
}

// composePrompt builds the final generation prompt. Nodes without resolvable
// parents use their user prompt verbatim.
func (g *Graph) composePrompt(n *Node) string {
	if len(n.ParentIDs) == 0 {
		return n.UserPrompt
	}

	g.mu.RLock()
	var parentOutputs []string
	for _, pid := range n.ParentIDs {
		if parent, ok := g.nodes[pid]; ok {
			parentOutputs = append(parentOutputs, parent.Output)
		}
	}
	g.mu.RUnlock()

	if len(parentOutputs) == 0 {
		return n.UserPrompt
	}
	joined := ""
	for i, out := range parentOutputs {
		if i > 0 {
			joined += parentJoinSeparator
		}
		joined += out
	}
	return "Previous version(s):\n\n" + joined + "\n\nTask: " + n.UserPrompt
}

// ComputeAllDiffs recomputes the diff of every node with at least one parent
// against that parent's output, or against all resolvable parents' outputs
// joined, for multi-parent nodes. It walks the entire graph rather than
// tracking dirtiness; callers invoke it after any edge or generation change.
// A single dangling parent leaves the node's diff unchanged.
func (g *Graph) ComputeAllDiffs() {
	g.mu.Lock()
	defer g.mu.Unlock()

	computed := 0
	for _, n := range g.nodes {
		if len(n.ParentIDs) == 0 {
			continue
		}
		if len(n.ParentIDs) == 1 {
			parent, ok := g.nodes[n.ParentIDs[0]]
			if !ok {
				continue
			}
			n.Diff = UnifiedDiff(parent.Output, n.Output)
			computed++
			continue
		}

		combined := ""
		first := true
		for _, pid := range n.ParentIDs {
			parent, ok := g.nodes[pid]
			if !ok {
				continue
			}
			if !first {
				combined += parentJoinSeparator
			}
			combined += parent.Output
			first = false
		}
		n.Diff = UnifiedDiff(combined, n.Output)
		computed++
	}
	g.metrics.addDiffs(computed)
}

// Evaluate generates every node that has a user prompt but no output yet,
// bounded by the configured maximum in-flight count, then recomputes all
// diffs and persists the graph. Failed generations do not cancel their
// siblings; all failures are aggregated into the returned error.
func (g *Graph) Evaluate(ctx context.Context) error {
	g.mu.RLock()
	var pending []*Node
	for _, n := range g.nodes {
		if n.Output == "" && n.UserPrompt != "" {
			pending = append(pending, n)
		}
	}
	g.mu.RUnlock()

	sem := semaphore.NewWeighted(int64(g.cfg.MaxTasks()))
	var wg sync.WaitGroup
	errs := make([]error, len(pending))

	for i, n := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, n *Node) {
			defer wg.Done()
			defer sem.Release(1)
			errs[i] = g.Generate(ctx, n)
		}(i, n)
	}
	wg.Wait()

	g.ComputeAllDiffs()

	if err := g.SaveAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveNode persists one node's content.
func (g *Graph) SaveNode(ctx context.Context, n *Node) error {
	if err := g.store.SaveNode(ctx, n.record()); err != nil {
		return err
	}
	return nil
}

// SaveAll persists every node's content plus the graph index.
func (g *Graph) SaveAll(ctx context.Context) error {
	g.mu.RLock()
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	g.mu.RUnlock()

	for _, n := range nodes {
		if err := g.store.SaveNode(ctx, n.record()); err != nil {
			return err
		}
	}
	return g.saveGraph(ctx)
}

// saveGraph writes the graph index: every node's summary plus the edge list
// derived from parent ids.
func (g *Graph) saveGraph(ctx context.Context) error {
	g.mu.RLock()
	doc := store.NewGraphDoc()
	for id, n := range g.nodes {
		doc.Nodes[id.String()] = n.record()
		for _, pid := range n.ParentIDs {
			doc.Edges = append(doc.Edges, store.EdgeRecord{From: pid.String(), To: id.String()})
		}
	}
	g.mu.RUnlock()

	return g.store.SaveGraph(ctx, doc)
}

func (g *Graph) emitFailure(id uuid.UUID, msg, modelName string, start time.Time, err error) {
	g.emitter.Emit(emit.Event{
		NodeID: id.String(),
		Msg:    msg,
		Meta: map[string]interface{}{
			"model":       modelName,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		},
	})
}
