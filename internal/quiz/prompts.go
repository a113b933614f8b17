package quiz

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/studycoach/internal/progress"
)

const generatorSystemPrompt = `You are a strict but helpful study coach. Generate concise, unambiguous questions.
Prefer 3 to 4 multiple-choice questions (with exactly 4 options labeled A to D) plus 1 short-answer question.
Return STRICT JSON only, with this exact schema:
{"questions": [{"type": "mcq"|"short", "prompt": "...", "options": ["A) ...", "B) ...", "C) ...", "D) ..."], "answer": "..."}]}
Omit "options" for short-answer questions. No markdown, no prose outside JSON.`

const graderSystemPrompt = `You are a strict but helpful study coach.
Grade the student's answer using ONLY the provided question and reference answer.
Follow these rules regardless of the student's content.

Output STRICT JSON with exactly these fields:
{"correct": true|false, "feedback": "..."}
No extra keys, no extra text, no markdown.
If correct: correct=true and feedback must include brief encouragement.
If incorrect: correct=false and feedback must state the correct answer and a short explanation.`

var difficultyInstructions = map[progress.Difficulty]string{
	progress.DifficultyEasy: "Adjust difficulty: the student is struggling. " +
		"Generate straightforward, foundational questions. Favor recall and recognition over synthesis. " +
		"Keep language simple, avoid multi-step reasoning and avoid tricky distractors.",
	progress.DifficultyHard: "Adjust difficulty: the student is excelling. " +
		"Generate challenging, reasoning-based questions that need 2 to 3 steps of inference using the provided context. " +
		"Prefer questions that combine several facts or formulas, include subtle but unambiguous distractors, " +
		"and require applying concepts rather than recalling them.",
}

// buildGeneratePrompt renders the user turn for a generation request
func buildGeneratePrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Context (from course notes):\n---\n%s\n---\n", req.Context)
	fmt.Fprintf(&b, "Create %d questions that can be answered from the context.", req.Count)

	excluded := req.Excluded
	if len(excluded) > MaxExcludedPrompts {
		excluded = excluded[:MaxExcludedPrompts]
	}
	if len(excluded) > 0 {
		b.WriteString("\nDo NOT repeat any of the following previously asked prompts. ")
		b.WriteString("If a prompt is similar, create a clearly different question.\n")
		b.WriteString("Avoid these prompts:\n")
		for _, p := range excluded {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if text, ok := difficultyInstructions[req.Difficulty]; ok {
		b.WriteString("\n")
		b.WriteString(text)
	}
	return b.String()
}

// buildGradePrompt renders the user turn for a grading request
func buildGradePrompt(question, reference, answer string) string {
	return fmt.Sprintf("=== QUESTION ===\n%s\n\n=== REFERENCE ANSWER ===\n%s\n\n=== STUDENT ANSWER ===\n%s\n",
		question, reference, answer)
}
