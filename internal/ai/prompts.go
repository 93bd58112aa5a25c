package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TagPromptFromText asks for up to three topic tags for an image, given only
// its OCR text.
func TagPromptFromText(ocrText string) string {
	return fmt.Sprintf(`## Background
The text below was recognized from an image by OCR. Guess what the image shows and what it is about.

## Goal
Describe the image's subject in at most three words.

## Requirements
- Reply with a JSON object
- At most three tags
- Tags should be as unrelated to each other as possible
- If there is too little input, reply with an empty array
- Use the language of the text

## Examples
1. {"tags": ["conversation", "weather", "landscape"], "description": ""}
2. {"tags": [], "description": ""}

OCR text:
%s
`, ocrText)
}

// TagPromptForImage asks for up to three topic tags and a 50-100 character
// description of an attached image.
func TagPromptForImage(ocrText string) string {
	if strings.TrimSpace(ocrText) == "" {
		ocrText = "(no text)"
	}
	return fmt.Sprintf(`## Goal
Describe the attached image.

## Requirements
- Reply with a JSON object with "tags" and "description"
- "tags": at most three words about the image's subject, as unrelated to each other as possible; an empty array if there is too little to go on
- "description": one paragraph of 50 to 100 characters covering the subject, key objects, and the main points of any text; no Markdown
- Combine what you see with the OCR text below

## Examples
1. {"tags": ["conversation", "weather", "landscape"], "description": "A chat screenshot where two people discuss the weekend weather forecast."}
2. {"tags": [], "description": ""}

OCR text:
%s
`, ocrText)
}

// TagResult is the decoded tagging reply.
type TagResult struct {
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// ParseTagResult decodes a tagging reply. Models sometimes wrap JSON in a
// Markdown code fence; the fence is stripped before decoding.
func ParseTagResult(content string) (TagResult, error) {
	var r TagResult
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if s == "" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return r, fmt.Errorf("decode tag reply: %w", err)
	}
	r.Description = strings.TrimSpace(r.Description)
	return r, nil
}
