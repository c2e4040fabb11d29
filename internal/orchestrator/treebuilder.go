package orchestrator

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"backend/internal/models"
)

// MessageSink is the persistence dependency of the tree builder.
type MessageSink interface {
	InsertMessage(msg *models.Message) (string, error)
}

// Pacing bounds the randomized delay inserted before each message so that
// observers polling the debate see it grow "live". Zero pacing disables the
// delay entirely (tests, batch backfills).
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

// DefaultPacing matches what readers of the public feed expect.
var DefaultPacing = Pacing{Min: 1500 * time.Millisecond, Max: 3 * time.Second}

func (p Pacing) disabled() bool {
	return p.Max <= 0
}

func (p Pacing) delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int63n(int64(p.Max-p.Min)))
}

// TreeBuilder materializes a generator's flat ordered reply list into a
// parent-linked message tree.
type TreeBuilder struct {
	sink     MessageSink
	personas map[string]models.Persona
	pacing   Pacing
	logger   *zap.Logger
}

// NewTreeBuilder creates a tree builder. The persona map resolves display
// names; replies from unknown persona ids still get a readable name.
func NewTreeBuilder(sink MessageSink, personas []models.Persona, pacing Pacing, logger *zap.Logger) *TreeBuilder {
	byID := make(map[string]models.Persona, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}
	return &TreeBuilder{sink: sink, personas: byID, pacing: pacing, logger: logger}
}

// Materialize persists the replies in input order and returns the created
// message ids, aligned by position (nil where an insert failed).
//
// Parent resolution per position i:
//   - a parent_index inside [0, i) is honored;
//   - otherwise, for i > 0, the message chains to the previous one, so the
//     result is always a single connected tree, never a forest;
//   - position 0 is the root.
func (tb *TreeBuilder) Materialize(ctx context.Context, debateID string, replies []models.AuthoredReply) ([]*string, error) {
	created := make([]*string, 0, len(replies))

	for i, reply := range replies {
		if !tb.pacing.disabled() {
			select {
			case <-time.After(tb.pacing.delay()):
			case <-ctx.Done():
				return created, ctx.Err()
			}
		}

		var parentID *string
		if reply.ParentIndex != nil && *reply.ParentIndex >= 0 && *reply.ParentIndex < i {
			parentID = created[*reply.ParentIndex]
		}
		if parentID == nil && i > 0 {
			// The generator omitted or mis-specified the parent; chain to
			// the previous message instead of creating a second root.
			parentID = created[i-1]
		}

		msg := &models.Message{
			DebateID:    debateID,
			PersonaID:   reply.PersonaID,
			PersonaName: tb.displayName(reply.PersonaID),
			Role:        models.RolePersona,
			Content:     reply.Content,
			Category:    reply.Category,
			ParentID:    parentID,
		}

		id, err := tb.sink.InsertMessage(msg)
		if err != nil {
			tb.logger.Error("Failed to persist message, keeping position alignment",
				zap.String("debate_id", debateID),
				zap.Int("position", i),
				zap.Error(err))
			created = append(created, nil)
			continue
		}
		created = append(created, &id)
	}

	return created, nil
}

func (tb *TreeBuilder) displayName(personaID string) string {
	if p, ok := tb.personas[personaID]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	if personaID == "" {
		return "Unknown"
	}
	return strings.ToUpper(personaID[:1]) + personaID[1:]
}
