package llm

import (
	"fmt"
	"strings"

	"backend/internal/models"
)

// DiscoveryInstruction is the system prompt for redacting raw web findings
// into a single report candidate.
const DiscoveryInstruction = `You are the Scout, the topic collector of a synthetic-debate platform
covering bureaucratic and systemic absurdities. You receive raw web search
findings and distill them into ONE report candidate.

Rules:
1. Prefer the freshest, most concrete finding: institutions, amounts, dates,
   quotable decisions. Ignore stale stories and advertising noise.
2. Write a short technical title and a description focused on the essence of
   the problem. Dry wit is welcome; fabrication is not.
3. Pick the most credible source_url among the findings.
4. Estimate initial_score 0-100 for how absurd the situation is.

Respond with a single JSON object:
{"title": string, "description": string, "source_url": string, "initial_score": number}`

// DebateInstruction builds the system prompt for full debate generation
// from the configured persona roster.
func DebateInstruction(personas []models.Persona) string {
	var b strings.Builder
	b.WriteString("You are the central orchestrator of a synthetic multi-persona debate ")
	b.WriteString("about a reported bureaucratic or systemic absurdity.\n\n")

	b.WriteString("PERSONAS (pick voices fitting the topic; each speaks at most once):\n")
	for i, p := range personas {
		fmt.Fprintf(&b, "%d. %s (%s) — %s\n", i+1, p.ID, p.DisplayName, p.Stance)
	}

	b.WriteString(`
DEBATE DYNAMICS:
- Personas should address each other directly (e.g. @scout, @bureaucrat).
- Disagreement is mandatory; no persona simply agrees with the previous one.

THREADING:
- Each reply may answer an earlier reply. Use "parent_index" to point at the
  zero-based position of the reply being answered within the "replies" list.
- A root statement has "parent_index": null. Only the first reply is a root.
- Build at least 3 levels of nesting.

SCORING AND TAGS:
- Rate the severity of the absurdity 0-100 in "severity_score".
- Write a concise "summary".
- Choose 1-3 "tags", ONLY from this list: `)
	b.WriteString(strings.Join(models.TagVocabulary, ", "))
	b.WriteString(`

Respond with a single JSON object:
{"summary": string, "severity_score": number, "tags": [string],
 "replies": [{"persona_id": string, "content": string, "category": string,
              "parent_index": number|null}]}`)

	return b.String()
}

// BuildDebatePrompt assembles the user prompt for one debate run from the
// source report plus optional enrichment blocks.
func BuildDebatePrompt(report *models.Report, ragContext, research string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %q\n", report.Title)
	content := report.Content
	if content == "" {
		content = "no description provided"
	}
	fmt.Fprintf(&b, "Description: %s\n", content)
	if report.SourceURL != nil && *report.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", *report.SourceURL)
	}
	if ragContext != "" {
		b.WriteString("\n")
		b.WriteString(ragContext)
		b.WriteString("\n")
	}
	if research != "" {
		b.WriteString("\n")
		b.WriteString(research)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildDiscoveryPrompt assembles the user prompt for the scout redaction
// call from raw search findings.
func BuildDiscoveryPrompt(findings []Finding) string {
	var b strings.Builder
	b.WriteString("Distill the following web findings into one report candidate.\n\nFINDINGS:\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "[%d] %s\n    URL: %s\n    Content: %s\n", i+1, f.Title, f.URL, f.Content)
	}
	return b.String()
}

// FormatResearchBlock renders findings as a prompt enrichment block for a
// debate run, mirroring what observers later see quoted in the thread.
func FormatResearchBlock(findings []Finding) string {
	if len(findings) == 0 {
		return "SCOUT RESEARCH: no external sources found, internal analysis only."
	}
	var b strings.Builder
	b.WriteString("SCOUT RESEARCH (web sources):\n")
	for i, f := range findings {
		if i >= 3 {
			break
		}
		content := f.Content
		// Rune-based cap: source text is often Cyrillic and a byte slice
		// could cut a character in half.
		if r := []rune(content); len(r) > 200 {
			content = string(r[:200]) + "..."
		}
		fmt.Fprintf(&b, "\n[%d] %s\n    URL: %s\n    Content: %s\n", i+1, f.Title, f.URL, content)
	}
	return b.String()
}

// Finding is one raw web search result handed to the prompt builders.
type Finding struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}
