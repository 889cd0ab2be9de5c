package dag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iterai/iterai-go/dag/model"
	"github.com/iterai/iterai-go/dag/store"
)

func newTestEngine(t *testing.T, gen model.Generator) *Engine {
	t.Helper()

	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}

	engine, err := NewEngine(DefaultConfig(), WithStore(st), WithGenerator(gen))
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	t.Cleanup(func() {
		_ = engine.Close()
	})
	return engine
}

func TestEngineCreateRoot(t *testing.T) {
	mock := &model.MockGenerator{Responses: rootResponses("Hello!")}
	engine := newTestEngine(t, mock)

	root, err := engine.CreateRoot(context.Background(), "Say hi", "", "")
	if err != nil {
		t.Fatalf("CreateRoot() error: %v", err)
	}

	if root.Output != "Hello!" {
		t.Errorf("Output = %q, want %q", root.Output, "Hello!")
	}
	if root.Model != "gpt-4o" {
		t.Errorf("Model = %q, want the configured default", root.Model)
	}
	if root.SystemPrompt == "" {
		t.Error("SystemPrompt = empty, want the configured template")
	}
	if root.Type != Standard {
		t.Errorf("Type = %q, want %q", root.Type, Standard)
	}
	if len(root.ParentIDs) != 0 {
		t.Errorf("ParentIDs = %v, want none", root.ParentIDs)
	}

	// The node is registered and persisted.
	if _, err := engine.Graph().Get(root.ID); err != nil {
		t.Errorf("Get(root) after create: %v", err)
	}
}

func TestEngineRefine(t *testing.T) {
	mock := &model.MockGenerator{
		Responses: append(rootResponses("Hello!"), rootResponses("Hello there!")...),
	}
	engine := newTestEngine(t, mock)
	ctx := context.Background()

	root, err := engine.CreateRoot(ctx, "Say hi", "", "")
	if err != nil {
		t.Fatalf("CreateRoot() error: %v", err)
	}

	child, err := engine.Refine(ctx, root, "Make it friendlier", "", "")
	if err != nil {
		t.Fatalf("Refine() error: %v", err)
	}

	if child.Type != Standard {
		t.Errorf("Type = %q, want %q", child.Type, Standard)
	}
	if len(child.ParentIDs) != 1 || child.ParentIDs[0] != root.ID {
		t.Errorf("ParentIDs = %v, want [%s]", child.ParentIDs, root.ID)
	}
	if child.Diff == "" {
		t.Error("Diff = empty after refine, want computed against the parent")
	}
	if !strings.Contains(child.Diff, "+Hello there!") {
		t.Errorf("Diff = %q, want the new line marked", child.Diff)
	}
}

func TestEngineSynthesize(t *testing.T) {
	mock := &model.MockGenerator{
		Responses: append(append(rootResponses("A"), rootResponses("B")...), rootResponses("AB")...),
	}
	engine := newTestEngine(t, mock)
	ctx := context.Background()

	p1, err := engine.CreateRoot(ctx, "first", "", "")
	if err != nil {
		t.Fatalf("CreateRoot() error: %v", err)
	}
	p2, err := engine.CreateRoot(ctx, "second", "", "")
	if err != nil {
		t.Fatalf("CreateRoot() error: %v", err)
	}

	combined, err := engine.Synthesize(ctx, []*Node{p1, p2}, "", "", "")
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}

	if combined.Type != Synthetic {
		t.Errorf("Type = %q, want %q", combined.Type, Synthetic)
	}
	if combined.UserPrompt != "Combine the best insights from all versions" {
		t.Errorf("UserPrompt = %q, want the default synthesis task", combined.UserPrompt)
	}
	if len(combined.ParentIDs) != 2 {
		t.Errorf("ParentIDs = %v, want both parents", combined.ParentIDs)
	}
	want := UnifiedDiff("A\n\n---\n\nB", "AB")
	if combined.Diff != want {
		t.Errorf("Diff = %q, want %q", combined.Diff, want)
	}
}

func TestEngineEvaluateNode(t *testing.T) {
	t.Run("numeric response sets score", func(t *testing.T) {
		mock := &model.MockGenerator{Responses: []string{" 0.85 \n"}}
		engine := newTestEngine(t, mock)

		node := NewNode("task", "", "", Standard)
		node.Output = "Some text"
		engine.Graph().AddNode(node)

		if err := engine.EvaluateNode(context.Background(), node, "gpt-4o"); err != nil {
			t.Fatalf("EvaluateNode() error: %v", err)
		}
		if node.Score == nil || *node.Score != 0.85 {
			t.Errorf("Score = %v, want 0.85", node.Score)
		}

		prompt := mock.Calls[0].Prompt
		if !strings.HasPrefix(prompt, "Rate the following text") || !strings.Contains(prompt, "Some text") {
			t.Errorf("prompt = %q, want the rating prompt with the output embedded", prompt)
		}
	})

	t.Run("non-numeric response leaves score unset", func(t *testing.T) {
		mock := &model.MockGenerator{Responses: []string{"pretty good"}}
		engine := newTestEngine(t, mock)

		node := NewNode("task", "", "", Standard)
		node.Output = "Some text"
		engine.Graph().AddNode(node)

		if err := engine.EvaluateNode(context.Background(), node, "gpt-4o"); err != nil {
			t.Fatalf("EvaluateNode() error: %v", err)
		}
		if node.Score != nil {
			t.Errorf("Score = %v, want nil for unparseable response", node.Score)
		}
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		mock := &model.MockGenerator{Err: cause}
		engine := newTestEngine(t, mock)

		node := NewNode("task", "", "", Standard)
		node.Output = "Some text"
		engine.Graph().AddNode(node)

		err := engine.EvaluateNode(context.Background(), node, "gpt-4o")
		var genErr *GenerateError
		if !errors.As(err, &genErr) || genErr.Op != "score" {
			t.Fatalf("error = %v, want *GenerateError with op score", err)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})
}

// countingGenerator tracks concurrent in-flight Generate calls.
type countingGenerator struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	fail     map[string]error
	block    chan struct{}
}

func (c *countingGenerator) Generate(ctx context.Context, modelName, prompt, systemPrompt string) (string, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()

	if c.block != nil {
		<-c.block
	}

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	for needle, err := range c.fail {
		if strings.Contains(prompt, needle) {
			return "", err
		}
	}
	return "0.5", nil
}

func TestEngineEvaluateAll(t *testing.T) {
	t.Run("scores all nodes", func(t *testing.T) {
		gen := &countingGenerator{}
		engine := newTestEngine(t, gen)

		var nodes []*Node
		for i := 0; i < 5; i++ {
			n := NewNode("task", "", "", Standard)
			n.Output = "text"
			engine.Graph().AddNode(n)
			nodes = append(nodes, n)
		}

		if err := engine.EvaluateAll(context.Background(), nodes, "gpt-4o"); err != nil {
			t.Fatalf("EvaluateAll() error: %v", err)
		}
		for i, n := range nodes {
			if n.Score == nil || *n.Score != 0.5 {
				t.Errorf("nodes[%d].Score = %v, want 0.5", i, n.Score)
			}
		}
	})

	t.Run("respects the in-flight bound", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(cfgPath, []byte("concurrency:\n  max_tasks: 2\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
		cfg, err := LoadConfig(cfgPath)
		if err != nil {
			t.Fatalf("LoadConfig() error: %v", err)
		}

		st, err := store.NewFSStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFSStore() error: %v", err)
		}
		gen := &countingGenerator{block: make(chan struct{})}
		engine, err := NewEngine(cfg, WithStore(st), WithGenerator(gen))
		if err != nil {
			t.Fatalf("NewEngine() error: %v", err)
		}
		defer engine.Close()

		var nodes []*Node
		for i := 0; i < 6; i++ {
			n := NewNode("task", "", "", Standard)
			n.Output = "text"
			engine.Graph().AddNode(n)
			nodes = append(nodes, n)
		}

		done := make(chan error, 1)
		go func() {
			done <- engine.EvaluateAll(context.Background(), nodes, "gpt-4o")
		}()

		// Unblock the backend once goroutines have had a chance to queue.
		time.Sleep(50 * time.Millisecond)
		close(gen.block)

		if err := <-done; err != nil {
			t.Fatalf("EvaluateAll() error: %v", err)
		}

		gen.mu.Lock()
		peak := gen.peak
		gen.mu.Unlock()
		if peak > 2 {
			t.Errorf("peak in-flight = %d, want at most 2", peak)
		}
	})

	t.Run("failures aggregate without cancelling siblings", func(t *testing.T) {
		cause := errors.New("backend down")
		gen := &countingGenerator{fail: map[string]error{"bad output": cause}}
		engine := newTestEngine(t, gen)

		good := NewNode("task", "", "", Standard)
		good.Output = "fine output"
		bad := NewNode("task", "", "", Standard)
		bad.Output = "bad output"
		engine.Graph().AddNode(good)
		engine.Graph().AddNode(bad)

		err := engine.EvaluateAll(context.Background(), []*Node{good, bad}, "gpt-4o")
		if !errors.Is(err, cause) {
			t.Fatalf("EvaluateAll() error = %v, want the failure surfaced", err)
		}
		if good.Score == nil {
			t.Error("sibling node was not evaluated despite the failure")
		}
	})
}
