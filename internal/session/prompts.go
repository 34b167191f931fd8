package session

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/coral-ai/proctor/internal/model"
)

// instructionsText is the system turn appended to the dialog history once an
// exam is loaded. It never reaches the student directly and is filtered out
// of the persisted transcript.
const instructionsText = `You are an AI exam proctor. Your role is to:
1. Present questions from this exam exactly as written:
{{.Questions}}
2. Wait for student responses
3. Maintain neutral and professional communication
4. Do not provide answers or hints
5. If the student says they don't know the answer, ask if they would like another chance to answer this question
6. If they want another chance, repeat the current question
7. If they don't want another chance, move to the next question
8. After all questions are asked, thank the student and conclude the exam
`

var instructionsTmpl = template.Must(template.New("instructions").Parse(instructionsText))

// buildInstructions renders the proctor instructions with the numbered
// question list for the loaded exam.
func buildInstructions(exam *model.Exam) (string, error) {
	var lines []string
	for i, q := range exam.Questions {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, q.Text))
	}

	var b strings.Builder
	err := instructionsTmpl.Execute(&b, map[string]string{
		"Questions": strings.Join(lines, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("render instructions: %w", err)
	}
	return b.String(), nil
}
