package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mopip77/pasteV/internal/ai"
	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/media/images"
	"github.com/Mopip77/pasteV/internal/normalize"
	"github.com/Mopip77/pasteV/internal/settings"
)

// Step names.
const (
	StepMetadata  = "metadata"
	StepOCR       = "ocr"
	StepWordCount = "word_count"
	StepTagging   = "ai_tag"
	StepEmbedding = "embedding"
)

// maxEmbedRunes caps the text sent for embedding.
const maxEmbedRunes = 8000

// Status is the outcome of one step.
type Status string

// Step statuses.
const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// StepResult reports one step of a chain.
type StepResult struct {
	Step     string
	Status   Status
	Err      error
	Wrote    bool
	Duration time.Duration
}

// Result summarizes a chain that changed its entry.
type Result struct {
	HashKey string
	Type    domain.EntryType
	Text    string
	Details domain.Details
	Steps   []StepResult
}

// job carries state between the steps of one chain.
type job struct {
	entry    *domain.ClipboardEntry
	text     string
	details  domain.Details
	settings settings.Settings
	wrote    bool
}

type step struct {
	name string
	run  func(ctx context.Context, j *job) StepResult
}

func skipped() StepResult { return StepResult{Status: StatusSkipped} }

func failed(err error) StepResult { return StepResult{Status: StatusFailed, Err: err} }

func wrote() StepResult { return StepResult{Status: StatusSuccess, Wrote: true} }

func (p *Pipeline) metadata(ctx context.Context, j *job) StepResult {
	if j.entry.Type != domain.EntryTypeImage || len(j.entry.Blob) == 0 {
		return skipped()
	}

	info, err := images.Inspect(j.entry.Blob)
	if err != nil {
		return failed(err)
	}
	patch := domain.Details{
		Width:      domain.IntPtr(info.Width),
		Height:     domain.IntPtr(info.Height),
		ByteLength: domain.IntPtr(info.ByteLength),
	}
	// A placeholder is nice to have; dimensions are still worth keeping without it.
	if hash, err := images.BlurHash(j.entry.Blob); err == nil {
		patch.BlurHash = hash
	} else {
		p.logger.Debug("blurhash failed", "hash_key", j.entry.HashKey, "error", err)
	}

	if err := p.store.MergeDetails(ctx, j.entry.HashKey, patch); err != nil {
		return failed(err)
	}
	j.details = j.details.Merge(patch)
	return wrote()
}

func (p *Pipeline) recognize(ctx context.Context, j *job) StepResult {
	if j.entry.Type != domain.EntryTypeImage || len(j.entry.Blob) == 0 || p.ocr == nil {
		return skipped()
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.OCRTimeout)
	defer cancel()

	text, err := p.ocr.Recognize(ctx, j.entry.Blob)
	if err != nil {
		if isUnavailable(err) {
			return skipped()
		}
		return failed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return StepResult{Status: StatusSuccess}
	}

	if err := p.store.UpdateText(ctx, j.entry.HashKey, text); err != nil {
		return failed(err)
	}
	j.text = text
	return wrote()
}

func (p *Pipeline) wordCount(ctx context.Context, j *job) StepResult {
	if j.entry.Type != domain.EntryTypeText {
		return skipped()
	}

	patch := domain.Details{WordCount: domain.IntPtr(len(strings.Fields(j.text)))}
	if err := p.store.MergeDetails(ctx, j.entry.HashKey, patch); err != nil {
		return failed(err)
	}
	j.details = j.details.Merge(patch)
	return wrote()
}

func (p *Pipeline) tag(ctx context.Context, j *job) StepResult {
	if j.entry.Type != domain.EntryTypeImage || p.chat == nil || !j.settings.AITaggingEnabled() {
		return skipped()
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.AITimeout)
	defer cancel()

	var (
		reply string
		err   error
	)
	switch j.settings.ImageInputType {
	case settings.ImageInputImage:
		upload, cerr := images.CompressForUpload(j.entry.Blob)
		if cerr != nil {
			return failed(cerr)
		}
		reply, err = p.chat.ChatJSONWithImage(ctx, ai.TagPromptForImage(j.text), upload, "image/jpeg")
	default:
		if strings.TrimSpace(j.text) == "" {
			return skipped()
		}
		reply, err = p.chat.ChatJSON(ctx, ai.TagPromptFromText(j.text))
	}
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return skipped()
		}
		return failed(err)
	}

	parsed, err := ai.ParseTagResult(reply)
	if err != nil {
		return failed(err)
	}
	tags := normalize.Tags(parsed.Tags)
	if len(tags) == 0 && parsed.Description == "" {
		return StepResult{Status: StatusSuccess}
	}

	patch := domain.Details{Tags: tags, Description: parsed.Description}
	if err := p.store.MergeDetails(ctx, j.entry.HashKey, patch); err != nil {
		return failed(err)
	}
	j.details = j.details.Merge(patch)

	if len(tags) > 0 {
		if err := p.store.AddTagRelations(ctx, j.entry.HashKey, tags); err != nil {
			return StepResult{Status: StatusFailed, Err: err, Wrote: true}
		}
	}
	return wrote()
}

func (p *Pipeline) embedding(ctx context.Context, j *job) StepResult {
	if p.embed == nil || !j.settings.SemanticSearchEnabled() {
		return skipped()
	}

	input := j.details.Description
	if input == "" {
		input = j.text
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return skipped()
	}
	input, _ = domain.TruncateText(input, maxEmbedRunes)

	ctx, cancel := context.WithTimeout(ctx, p.opts.AITimeout)
	defer cancel()

	vec, err := p.embed.Embed(ctx, input)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return skipped()
		}
		return failed(err)
	}
	if len(vec) == 0 {
		return StepResult{Status: StatusSuccess}
	}

	if err := p.store.UpdateEmbedding(ctx, j.entry.HashKey, vec); err != nil {
		return failed(err)
	}
	return wrote()
}
