package extract

import (
	"fmt"

	"github.com/kalambet/skillgap/internal/engine"
)

const systemPrompt = `You extract requirement items from job postings and résumés. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Each item is a short phrase naming one skill, qualification or expectation.
- Keep language levels with the language ("English B2", "French fluent").
- Include technical skills, tools and software specific to the job.
- Include soft skills such as communication or leadership.
- Include seniority and years of experience ("Senior", "5 years of Python").
- Include degrees and certifications.
- Include domain expertise.
- Do not invent items that the text does not mention.`

// BuildPrompt constructs the chat messages for requirement extraction.
func BuildPrompt(text, domainContext string) []engine.Message {
	system := systemPrompt
	if domainContext != "" {
		system += fmt.Sprintf("\n\n[Job Context]\n%s", domainContext)
	}
	return []engine.Message{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: text},
	}
}
