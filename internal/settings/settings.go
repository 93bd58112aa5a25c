// Package settings holds the user-editable feature settings stored in
// app-config.json, and reloads them when the file changes.
package settings

import (
	"encoding/json"
	"strings"
)

// ImageInputType selects what the AI tagger sees for an image.
type ImageInputType string

// Image input types.
const (
	ImageInputText  ImageInputType = "text"
	ImageInputImage ImageInputType = "image"
)

// Defaults for fields missing from the file.
const (
	DefaultHistoryClearDays        = 30
	DefaultSemanticSearchThreshold = 0.2
	DefaultToggleShortcut          = "CommandOrControl+Shift+Option+V"
)

// OpenAIConfig names an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIHost string `json:"apiHost" validate:"omitempty,http_url"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model" validate:"max=128"`
}

// Configured reports whether every field is set.
func (c *OpenAIConfig) Configured() bool {
	return c != nil && strings.TrimSpace(c.APIHost) != "" && c.APIKey != "" && c.Model != ""
}

// Settings is the decoded settings file.
type Settings struct {
	AppWindowToggleShortcut string         `json:"appWindowToggleShortcut" validate:"max=128"`
	HistoryClearDays        int            `json:"historyClearDays"` // < 1 disables retention
	AITagEnable             bool           `json:"aiTagEnable"`
	ImageInputType          ImageInputType `json:"imageInputType" validate:"oneof=text image"`
	OpenAIConfig            *OpenAIConfig  `json:"openaiConfig,omitempty"`
	SemanticSearchEnable    bool           `json:"semanticSearchEnable"`
	SemanticSearchThreshold float64        `json:"semanticSearchThreshold" validate:"gte=0,lte=1"`
}

// Defaults returns the settings used when the file is missing.
func Defaults() Settings {
	return Settings{
		AppWindowToggleShortcut: DefaultToggleShortcut,
		HistoryClearDays:        DefaultHistoryClearDays,
		ImageInputType:          ImageInputText,
		SemanticSearchThreshold: DefaultSemanticSearchThreshold,
	}
}

// AITaggingEnabled reports whether image tagging should run.
func (s Settings) AITaggingEnabled() bool {
	return s.AITagEnable && s.OpenAIConfig.Configured()
}

// SemanticSearchEnabled reports whether embeddings should be computed and
// semantic queries served.
func (s Settings) SemanticSearchEnabled() bool {
	return s.SemanticSearchEnable && s.OpenAIConfig.Configured()
}

// RetentionEnabled reports whether old entries should be swept.
func (s Settings) RetentionEnabled() bool {
	return s.HistoryClearDays >= 1
}

// Decode parses a settings file leniently: each field is decoded on its own,
// and a missing or mistyped field keeps its default. It returns the names of
// the fields that could not be decoded. Malformed JSON yields the defaults.
func Decode(data []byte) (Settings, []string) {
	s := Defaults()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, []string{"*"}
	}

	var bad []string
	field := func(key string, dst any) {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			bad = append(bad, key)
		}
	}

	field("appWindowToggleShortcut", &s.AppWindowToggleShortcut)
	field("historyClearDays", &s.HistoryClearDays)
	field("aiTagEnable", &s.AITagEnable)
	field("imageInputType", &s.ImageInputType)
	field("semanticSearchEnable", &s.SemanticSearchEnable)
	field("semanticSearchThreshold", &s.SemanticSearchThreshold)

	var oc OpenAIConfig
	if v, ok := raw["openaiConfig"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &oc); err != nil {
			bad = append(bad, "openaiConfig")
		} else {
			s.OpenAIConfig = &oc
		}
	}

	return s, bad
}
