package brief

import (
	"fmt"
	"strings"
)

func planningPrompt(topic string, depth Depth, contextSummary *ContextSummary, additional string) string {
	minS, maxS := depth.SourceBudget()

	var b strings.Builder
	fmt.Fprintf(&b, `You are a research planner. Produce a focused web research plan for the topic below.

Topic: %s
Depth: %s (consult between %d and %d sources)
`, topic, depth, minS, maxS)

	if contextSummary != nil && contextSummary.CondensedContext != "" {
		fmt.Fprintf(&b, "\nThis is a follow-up request. Prior research context:\n%s\n", contextSummary.CondensedContext)
		if len(contextSummary.PriorTopics) > 0 {
			fmt.Fprintf(&b, "Prior topics: %s\n", strings.Join(contextSummary.PriorTopics, "; "))
		}
		b.WriteString("Plan queries that build on this context instead of repeating it.\n")
	}
	if additional != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the user:\n%s\n", additional)
	}

	fmt.Fprintf(&b, `
Respond with ONLY a JSON object:
{
  "queries": ["3-6 distinct search engine queries covering different angles"],
  "rationale": "why these queries cover the topic",
  "expected_sources": %d,
  "focus_areas": ["the aspects the brief should emphasize"]
}`, maxS)
	return b.String()
}

func contextPrompt(topic string, history []FinalBrief) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are preparing context for a follow-up research request.

New topic: %s

The user's previous research briefs, newest first:
`, topic)

	for i, h := range history {
		fmt.Fprintf(&b, "\n[%d] Topic: %s\nSummary: %s\n", i+1, h.Topic, h.ExecutiveSummary)
	}

	b.WriteString(`
Condense what matters for the new topic. Respond with ONLY a JSON object:
{
  "prior_topics": ["topics from the history"],
  "condensed_context": "what prior research established that the new brief should build on",
  "relevant_history_ids": ["ids of the briefs that actually matter, may be empty"]
}`)
	return b.String()
}

func summaryPrompt(topic string, focusAreas []string, page PageContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Summarize the following source for a research brief on: %s
`, topic)
	if len(focusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(focusAreas, "; "))
	}
	fmt.Fprintf(&b, `
URL: %s
Title: %s

Content:
%s

Respond with ONLY a JSON object:
{
  "url": "%s",
  "title": "the source title",
  "summary": "2-4 sentence summary of what this source contributes",
  "relevance_score": 0.0,
  "key_points": ["the concrete facts or claims worth citing"],
  "source_type": "one of: news, academic, blog, documentation, forum, other",
  "publication_date": "if stated, else null",
  "author": "if stated, else null"
}
relevance_score is how relevant this source is to the topic, between 0 and 1.`, page.URL, page.Title, page.Text, page.URL)
	return b.String()
}

func synthesisPrompt(topic string, contextSummary *ContextSummary, summaries []SourceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are writing a research brief on: %s

`, topic)
	if contextSummary != nil && contextSummary.CondensedContext != "" {
		fmt.Fprintf(&b, "Prior research context to build on:\n%s\n\n", contextSummary.CondensedContext)
	}

	b.WriteString("Source summaries:\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "\n[%d] %s (%s, relevance %.2f)\n%s\nKey points: %s\n",
			i+1, s.Title, s.URL, s.RelevanceScore, s.Summary, strings.Join(s.KeyPoints, "; "))
	}

	b.WriteString(`
Write the brief strictly from these sources. Respond with ONLY a JSON object:
{
  "executive_summary": "3-5 sentences a busy reader needs",
  "synthesis": "several paragraphs weaving the sources into one coherent analysis, noting agreements and contradictions",
  "key_insights": ["the 3-7 most important takeaways"]
}`)
	return b.String()
}
