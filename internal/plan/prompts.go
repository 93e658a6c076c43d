package plan

import (
	"embed"
	"encoding/json"
	"strings"
)

//go:embed templates/system_prompt.md templates/repair_prompt.md
var templatesFS embed.FS

// Prompts holds the system prompts sent with generation and repair requests.
type Prompts struct {
	System string
	Repair string
}

// LoadPrompts reads the embedded prompt templates.
func LoadPrompts() (Prompts, error) {
	system, err := templatesFS.ReadFile("templates/system_prompt.md")
	if err != nil {
		return Prompts{}, err
	}
	repair, err := templatesFS.ReadFile("templates/repair_prompt.md")
	if err != nil {
		return Prompts{}, err
	}
	return Prompts{System: string(system), Repair: string(repair)}, nil
}

// UserPrompt lays out the free-text request, the constraints and the language.
func UserPrompt(promptText string, constraints *Constraints, language string) string {
	constraintsJSON := "{}"
	if constraints != nil {
		if b, err := json.Marshal(constraints); err == nil {
			constraintsJSON = string(b)
		}
	}
	return strings.Join([]string{
		"USER_DESCRIPTION:",
		promptText,
		"",
		"CONSTRAINTS_JSON:",
		constraintsJSON,
		"",
		"LANGUAGE:",
		language,
	}, "\n")
}

// RepairUserPrompt asks the model to correct previousJSON given the sorted violations.
func RepairUserPrompt(violations []string, previousJSON string) string {
	return strings.Join([]string{
		"Validation errors:",
		"- " + strings.Join(violations, "\n- "),
		"",
		"Previous JSON:",
		previousJSON,
	}, "\n")
}
