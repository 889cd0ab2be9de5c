package dag

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iterai/iterai-go/dag/model"
	"github.com/iterai/iterai-go/dag/store"
)

// ImprovementType classifies how a node relates to its parents.
type ImprovementType string

const (
	// Standard marks a node with at most one parent: a root or an
	// iterative refinement.
	Standard ImprovementType = "standard"

	// Synthetic marks a node combining more than one parent.
	Synthetic ImprovementType = "synthetic"
)

// Node is the graph's versioned unit: an identity, its generation inputs,
// its generated content, and its graph relationships.
//
// ParentIDs are set at construction or edge-attach time and are immutable
// afterward. Children is the authoritative inverse of ParentIDs, maintained
// by the Graph whenever an edge is added. Nodes are never deleted.
type Node struct {
	ID           uuid.UUID
	ParentIDs    []uuid.UUID
	UserPrompt   string
	SystemPrompt string
	Model        string
	Plan         []Step
	Output       string
	Diff         string
	Score        *float64
	Type         ImprovementType
	Children     []uuid.UUID
	CreatedAt    time.Time
	Metadata     map[string]interface{}
}

// NewNode creates a node with a fresh identity and creation timestamp.
// An empty improvement type defaults to Standard.
func NewNode(userPrompt, systemPrompt, modelName string, typ ImprovementType) *Node {
	if typ == "" {
		typ = Standard
	}
	return &Node{
		ID:           uuid.New(),
		ParentIDs:    []uuid.UUID{},
		UserPrompt:   userPrompt,
		SystemPrompt: systemPrompt,
		Model:        modelName,
		Plan:         []Step{},
		Type:         typ,
		Children:     []uuid.UUID{},
		CreatedAt:    time.Now().UTC(),
		Metadata:     map[string]interface{}{},
	}
}

// addChild appends id to the node's children unless already present. All
// parent/child relation maintenance goes through here.
func (n *Node) addChild(id uuid.UUID) {
	for _, c := range n.Children {
		if c == id {
			return
		}
	}
	n.Children = append(n.Children, id)
}

// DiffPlan textually diffs this node's plan against other's.
func (n *Node) DiffPlan(other *Node) string {
	return ComparePlans(n.Plan, other.Plan)
}

// DiffPlanSemantic asks the backend for a free-text comparison of this
// node's plan against other's.
func (n *Node) DiffPlanSemantic(ctx context.Context, gen model.Generator, modelName string, other *Node) (string, error) {
	return ComparePlansSemantic(ctx, gen, modelName, n.Plan, other.Plan)
}

// record converts the node to its serialized form.
func (n *Node) record() store.NodeRecord {
	parents := make([]string, len(n.ParentIDs))
	for i, id := range n.ParentIDs {
		parents[i] = id.String()
	}
	children := make([]string, len(n.Children))
	for i, id := range n.Children {
		children[i] = id.String()
	}
	plan := make([]store.StepRecord, len(n.Plan))
	for i, s := range n.Plan {
		plan[i] = store.StepRecord{Order: s.Order, Text: s.Text}
	}
	return store.NodeRecord{
		ID:           n.ID.String(),
		ParentIDs:    parents,
		UserPrompt:   n.UserPrompt,
		SystemPrompt: n.SystemPrompt,
		Model:        n.Model,
		Score:        n.Score,
		Type:         string(n.Type),
		Children:     children,
		CreatedAt:    n.CreatedAt,
		Metadata:     n.Metadata,
		Plan:         plan,
		Output:       n.Output,
		Diff:         n.Diff,
	}
}

// nodeFromRecord rebuilds a node from its serialized form. Unparseable
// parent or child ids are dropped.
func nodeFromRecord(rec store.NodeRecord) (*Node, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, err
	}

	parents := make([]uuid.UUID, 0, len(rec.ParentIDs))
	for _, s := range rec.ParentIDs {
		if pid, err := uuid.Parse(s); err == nil {
			parents = append(parents, pid)
		}
	}
	children := make([]uuid.UUID, 0, len(rec.Children))
	for _, s := range rec.Children {
		if cid, err := uuid.Parse(s); err == nil {
			children = append(children, cid)
		}
	}
	plan := make([]Step, len(rec.Plan))
	for i, s := range rec.Plan {
		plan[i] = Step{Order: s.Order, Text: s.Text}
	}

	typ := ImprovementType(rec.Type)
	if typ == "" {
		typ = Standard
	}
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return &Node{
		ID:           id,
		ParentIDs:    parents,
		UserPrompt:   rec.UserPrompt,
		SystemPrompt: rec.SystemPrompt,
		Model:        rec.Model,
		Plan:         plan,
		Output:       rec.Output,
		Diff:         rec.Diff,
		Score:        rec.Score,
		Type:         typ,
		Children:     children,
		CreatedAt:    rec.CreatedAt,
		Metadata:     metadata,
	}, nil
}
