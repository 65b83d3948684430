package classifier

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a note classification assistant. Your task is to classify the following note into an appropriate category and suggest a filename.

IMPORTANT INSTRUCTIONS:
1. STRONGLY PREFER existing categories over creating new ones
2. Only suggest a new category if the note clearly doesn't fit any existing category
3. Use lowercase with underscores for category names (e.g., "work_projects", "cooking_recipes")
4. Provide a confidence score between 0.0 and 1.0
5. Suggest a descriptive filename without extension
6. Respond ONLY with valid JSON in the exact format shown below

EXISTING CATEGORIES: %s

NOTE TO CLASSIFY:
"%s"

Respond with JSON in this exact format:
{
    "class": "category_name",
    "confidence": 0.95,
    "suggested_filename": "descriptive_filename_without_extension"
}

JSON Response:`

// BuildPrompt renders the classification prompt with the comma-joined,
// quoted list of known categories.
func BuildPrompt(text string, known []string) string {
	existing := "none"
	if len(known) > 0 {
		quoted := make([]string, len(known))
		for i, c := range known {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		existing = strings.Join(quoted, ", ")
	}
	return fmt.Sprintf(promptTemplate, existing, text)
}
