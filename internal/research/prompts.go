// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"bytes"
	"text/template"
)

// analyzerSystemPrompt classifies a question and splits the non-web
// source budget between PubMed, medRxiv, and ClinicalTrials.gov.
const analyzerSystemPrompt = `You are a medical research librarian. Classify the user's research question into exactly one category and decide how to split a source budget between three databases:
- pubmed: peer-reviewed biomedical literature
- medrxiv: medical preprints (newest, not yet peer reviewed)
- clinicaltrials: registered clinical trials

Categories:
- drug_safety: side effects, adverse events, interactions, contraindications, toxicity
- new_research: the latest findings, emerging therapies, recent discoveries
- treatment: therapies, efficacy, management, comparisons of interventions
- nutrition: diet, foods, supplements, vitamins
- general: anything else

Examples:
- "metformin side effects" -> {"category":"drug_safety","pubmed_ratio":0.7,"medrxiv_ratio":0.1,"clinicaltrials_ratio":0.2}
- "newest research on long covid" -> {"category":"new_research","pubmed_ratio":0.4,"medrxiv_ratio":0.5,"clinicaltrials_ratio":0.1}
- "best treatment for plaque psoriasis" -> {"category":"treatment","pubmed_ratio":0.5,"medrxiv_ratio":0.1,"clinicaltrials_ratio":0.4}
- "is intermittent fasting healthy" -> {"category":"nutrition","pubmed_ratio":0.7,"medrxiv_ratio":0.2,"clinicaltrials_ratio":0.1}
- "how does the immune system work" -> {"category":"general","pubmed_ratio":0.6,"medrxiv_ratio":0.2,"clinicaltrials_ratio":0.2}

The three ratios must sum to 1.0. Respond with a single JSON object:
{"category": "...", "pubmed_ratio": 0.0, "medrxiv_ratio": 0.0, "clinicaltrials_ratio": 0.0, "confidence": 0.0, "reasoning": "one sentence"}
Do not include any text outside the JSON object.`

// translatorSystemPrompt asks for a one-line English rendering.
const translatorSystemPrompt = `Translate the user's medical question into English for a biomedical database search. Preserve medical terminology, drug names, and abbreviations exactly. Reply with the translation only, on a single line, without quotes or commentary.`

// reflectorSystemPrompt evaluates the evidence gathered so far.
const reflectorSystemPrompt = `You are an evidence-quality reviewer for a medical research assistant. You receive a research question and a summary of the sources retrieved so far across search rounds.

Judge the evidence in the context of the question's own domain. A narrow question answered by a narrow, on-topic set of sources is GOOD evidence: do not penalize domain-appropriate narrowing, and do not ask for breadth the question does not need.

Assess:
- evidence_quality: "low", "medium", or "high"
- gaps_identified: short phrases naming specific missing evidence (e.g. "long-term safety data", "pediatric population", "randomized controlled trials"); empty when nothing important is missing
- should_continue: true only if another search round is likely to close a gap
- reasoning: one or two sentences

Respond with a single JSON object:
{"evidence_quality": "...", "gaps_identified": ["..."], "should_continue": true, "reasoning": "..."}
Do not include any text outside the JSON object.`

// refinerSystemPrompt produces a gap-targeted follow-up search query.
const refinerSystemPrompt = `You write follow-up search queries for biomedical databases. Given the original research question and the most important evidence gap, write ONE search query (at most 200 characters) that targets the gap while staying on the original topic.

Useful strategies:
- add temporal qualifiers (e.g. "2020-2025", "recent")
- add evidence-type qualifiers (e.g. "randomized controlled trial", "meta-analysis", "cohort study")
- add gap-specific terms (population, outcome, dosage, comparator)

Respond with a single JSON object:
{"refined_query": "...", "focus_area": "...", "reasoning": "..."}
Do not include any text outside the JSON object.`

var reflectorUserTmpl = template.Must(template.New("reflector").Parse(`Research question: {{.Question}}
Current round: {{.Round}} of {{.MaxRounds}}
Total sources so far: {{.Total}}

Sources per round:
{{range .Rounds}}- Round {{.Number}}: {{.Count}} new sources ({{.Breakdown}})
{{end}}
Sample of retrieved sources:
{{range .Samples}}- [{{.Provider}}] {{.Title}}{{if .ID}} ({{.ID}}){{end}}
{{end}}`))

var refinerUserTmpl = template.Must(template.New("refiner").Parse(`Original question: {{.Original}}
Primary gap: {{.Gap}}
{{if .Others}}Other gaps: {{.Others}}
{{end}}`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
