package service

import (
	"strings"

	"github.com/cloo-solutions/nutrikb/internal/openai"
)

const systemStyle = "Write in British English. Be neuro-affirmative and avoid pathologising language. Keep it concise and clear."

// System messages paired with each prompt.
const (
	questionsSystem = "You are a neuro-affirmative paediatric nutrition consultant."
	testsSystem     = "You are a careful paediatric nutrition consultant. Only recommend tests from the approved list."
	planSystem      = "You write concise, British English, neuro-affirmative care plans for Indian families."
)

// Sampling temperatures per prompt.
const (
	questionsTemperature float32 = 0.2
	testsTemperature     float32 = 0.1
	planTemperature      float32 = 0.2
)

// BuildQuestionPrompt asks for 10-15 clarifying questions for parents.
func BuildQuestionPrompt(psychometric, goldExcerpts string) string {
	var b strings.Builder
	b.WriteString(systemStyle)
	b.WriteString("\nYou are preparing for a paediatric nutrition consultation for a child with developmental needs, including autism or ADHD.\n")
	b.WriteString("Using the psychometric summary and, where useful, the similar gold-standard excerpts, write 10-15 clarifying questions for the parents.\n")
	b.WriteString("Questions must be specific, non-judgemental and easy to answer. Cover:\n")
	for _, topic := range []string{
		"current diet and feeding patterns (textures, preferences, routines)",
		"GI symptoms (constipation or diarrhoea, reflux, bloating)",
		"sleep, energy and attention regulation",
		"growth (height and weight trajectory, appetite changes)",
		"micronutrient risk factors (iron, B12, vitamin D, folate, zinc, magnesium)",
		"medication and supplement history, including ADHD medication",
		"cultural and Indian food context, and what is feasible at home",
	} {
		b.WriteString("- " + topic + "\n")
	}
	b.WriteString("\nPsychometric summary:\n\n" + psychometric + "\n")
	b.WriteString("\nSimilar gold-standard excerpts:\n\n" + goldExcerpts + "\n")
	b.WriteString("\nOutput: a numbered list of 10-15 questions in British English.\n")
	return b.String()
}

// BuildTestPrompt asks for tiered test recommendations restricted to the
// approved list carried in ruleYAML.
func BuildTestPrompt(psychometric, answers, ruleYAML string) string {
	var b strings.Builder
	b.WriteString(systemStyle)
	b.WriteString("\nRecommend blood and biochemical tests strictly from the approved list below, using the parent answers and psychometric context.\n")
	b.WriteString("Group the tests by priority:\n")
	b.WriteString("- Tier 1: baseline for most children\n")
	b.WriteString("- Tier 2: based on symptoms or risks\n")
	b.WriteString("- Tier 3: consider if flagged by history or earlier labs\n")
	b.WriteString("\nApproved list and rule-based picks (never invent tests):\n" + ruleYAML + "\n")
	b.WriteString("\nPsychometric summary:\n" + psychometric + "\n")
	b.WriteString("\nParent answers:\n" + answers + "\n")
	b.WriteString("\nOutput: Markdown bullet lists, one plain-language rationale line per test.\n")
	return b.String()
}

// BuildPlanPrompt asks for the diet and supplementation plan.
func BuildPlanPrompt(psychometric, answers, labs, testsMarkdown string) string {
	var b strings.Builder
	b.WriteString(systemStyle)
	b.WriteString("\nCreate a concise care plan for a child in India, using culturally relevant foods and keeping it practical for the family.\n")
	b.WriteString("Required sections:\n")
	for i, section := range []string{
		"Snapshot: what we know, in one paragraph",
		"Food plan: typical Indian staples, textures and routines, with a one-week sample",
		"Micronutrient focus (iron, vitamin D, B12, folate, zinc, magnesium): foods and simple swaps",
		"Supplement plan, only if labs or history indicate it: dose ranges by weight band, timing with meals, safety notes, no brand names",
		"Sleep and GI hygiene: simple habits",
		"Follow-up markers: what to monitor and when to repeat labs",
		"Plain-English handover for parents, as bullet points",
	} {
		b.WriteString(string(rune('1'+i)) + ") " + section + "\n")
	}
	b.WriteString("\nPsychometric summary:\n" + psychometric + "\n")
	b.WriteString("\nParent answers:\n" + answers + "\n")
	b.WriteString("\nKey lab excerpts (raw OCR allowed):\n" + labs + "\n")
	b.WriteString("\nTests requested earlier:\n" + testsMarkdown + "\n")
	b.WriteString("\nConstraints:\n")
	b.WriteString("- British English, neuro-affirmative, non-judgemental.\n")
	b.WriteString("- Short sentences. Explain any medical term in brackets.\n")
	b.WriteString("- Include a clear safety disclaimer: the plan supports clinical decision-making and must be reviewed by the child's clinician.\n")
	return b.String()
}

func promptMessages(system, user string) []openai.Message {
	return []openai.Message{
		{Role: openai.RoleSystem, Content: system},
		{Role: openai.RoleUser, Content: user},
	}
}

// ParseQuestions turns a numbered or bulleted completion into at most limit
// questions.
func ParseQuestions(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "-•* ")
		q = trimNumbering(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func trimNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) || (s[i] != '.' && s[i] != ')') {
		return s
	}
	return strings.TrimSpace(s[i+1:])
}
