package models

import (
	"time"

	"github.com/lib/pq"
)

// Debate statuses.
const (
	DebateStatusLoading  = "loading"
	DebateStatusActive   = "active"
	DebateStatusArchived = "archived"
)

// SummaryInitializing is written into a debate header while generation is
// still running. SummaryErrorPrefix marks a terminally failed run; the rest
// of the summary is the error detail.
const (
	SummaryInitializing = "DEBATE_INITIALIZING..."
	SummaryErrorPrefix  = "SYSTEM_ERROR: "
)

// Debate represents a debate header stored in the 'debates' table. Exactly
// one debate may exist per ExternalID (the source report id); regeneration
// reuses the same ID and keeps ConfirmationCount.
type Debate struct {
	ID                string         `db:"id" json:"id"`
	ExternalID        string         `db:"external_id" json:"external_id"`
	Title             string         `db:"title" json:"title"`
	Summary           string         `db:"summary" json:"summary"`
	SeverityScore     float64        `db:"severity_score" json:"severity_score"`
	Status            string         `db:"status" json:"status"`
	Tags              pq.StringArray `db:"tags" json:"tags"`
	SourceURL         *string        `db:"source_url" json:"source_url,omitempty"`
	ConfirmationCount int            `db:"confirmation_count" json:"confirmation_count"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// Message represents one persisted persona statement in the 'messages'
// table. ParentID is nil for the thread root.
type Message struct {
	ID          string    `db:"id" json:"id"`
	DebateID    string    `db:"debate_id" json:"debate_id"`
	PersonaID   string    `db:"persona_id" json:"persona_id"`
	PersonaName string    `db:"persona_name" json:"persona_name"`
	Role        string    `db:"role" json:"role"`
	Content     string    `db:"content" json:"content"`
	Category    string    `db:"category" json:"category"`
	ParentID    *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RolePersona is the role recorded for generator-authored messages.
const RolePersona = "PERSONA"

// AuthoredReply is one reply as emitted by the debate generator. It is
// never persisted as-is; ParentIndex is a zero-based position into the same
// result list (nil for a root claim) and is only trusted when it points at
// an earlier position.
type AuthoredReply struct {
	PersonaID   string `json:"persona_id"`
	Content     string `json:"content"`
	Category    string `json:"category"`
	ParentIndex *int   `json:"parent_index,omitempty"`
}

// DebateResult is the single structured output of one generator call.
type DebateResult struct {
	Summary       string          `json:"summary"`
	SeverityScore float64         `json:"severity_score"`
	Tags          []string        `json:"tags"`
	Replies       []AuthoredReply `json:"replies"`
}

// TopicDiscovery is the generator's redaction of raw web findings into a
// report candidate.
type TopicDiscovery struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	SourceURL    string  `json:"source_url"`
	InitialScore float64 `json:"initial_score"`
}

// Persona is a named authorial voice supplied to the generator. The roster
// is configuration, not code.
type Persona struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Category    string `yaml:"category" json:"category"`
	Stance      string `yaml:"stance" json:"stance"`
}

// TagVocabulary is the closed set of tags the generator may assign. A tag
// outside this list is a data-quality warning, not an error.
var TagVocabulary = []string{
	"DIGITAL_LOGIC", "EGOV_2_0", "CONCRETE_SPRAWL", "ECOLOGY", "TAX_OFFICE",
	"PAPERWORK", "LEGAL_PARADOX", "INFRASTRUCTURE", "LOCAL_GOV",
	"EU_ABSURD", "HEALTHCARE", "EDUCATION", "PUBLIC_TRANSPORT",
	"PENSION_LOGIC", "PROCUREMENT", "DIGITIZATION", "PERMITS", "HOUSING",
	"ENERGY", "JUSTICE", "BUREAUCRACY", "DIGITAL_MUSEUM", "LEGACY_RELIC",
	"TAXES", "PRIVACY",
}

var knownTags = func() map[string]bool {
	m := make(map[string]bool, len(TagVocabulary))
	for _, t := range TagVocabulary {
		m[t] = true
	}
	return m
}()

// IsKnownTag reports whether tag belongs to the closed vocabulary.
func IsKnownTag(tag string) bool {
	return knownTags[tag]
}

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	TotalDebates       int     `json:"total_debates"`
	TotalReports       int     `json:"total_reports"`
	TotalMessages      int     `json:"total_messages"`
	TotalConfirmations int     `json:"total_confirmations"`
	AverageSeverity    float64 `json:"average_severity_score"`
}
