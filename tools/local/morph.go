package local

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/martinemde/grokagent/tools"
)

// Morph fast-apply defaults.
const (
	MorphBaseURL = "https://api.morphllm.com/v1"
	MorphModel   = "morph-v3-large"
)

// MorphEditor merges abbreviated edits into files with the Morph fast-apply
// model, reached through its OpenAI-compatible chat endpoint.
type MorphEditor struct {
	wd     workdir
	client *openai.Client
	model  string
}

// MorphOption configures a MorphEditor.
type MorphOption func(*openai.ClientConfig, *MorphEditor)

// WithMorphBaseURL points the editor at a different endpoint.
func WithMorphBaseURL(url string) MorphOption {
	return func(cfg *openai.ClientConfig, _ *MorphEditor) {
		cfg.BaseURL = url
	}
}

// WithMorphModel overrides MorphModel.
func WithMorphModel(model string) MorphOption {
	return func(_ *openai.ClientConfig, e *MorphEditor) {
		e.model = model
	}
}

// NewMorphEditor creates a fast-apply editor rooted at dir.
func NewMorphEditor(apiKey, dir string, opts ...MorphOption) *MorphEditor {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = MorphBaseURL
	e := &MorphEditor{wd: newWorkdir(dir), model: MorphModel}
	for _, opt := range opts {
		opt(&cfg, e)
	}
	e.client = openai.NewClientWithConfig(cfg)
	return e
}

// SetWorkingDirectory changes the directory relative paths resolve against.
func (e *MorphEditor) SetWorkingDirectory(dir string) {
	e.wd.set(dir)
}

// Apply sends the current file, the instruction and the abbreviated edit to
// the model and writes back the merged file.
func (e *MorphEditor) Apply(ctx context.Context, targetFile, instructions, codeEdit string) tools.Result {
	resolved := e.wd.resolve(targetFile)
	original, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Fail("File not found: %s", targetFile)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: fastApplyPrompt(instructions, string(original), codeEdit),
		}},
	})
	if err != nil {
		return tools.Fail("Morph API error: %v", err)
	}
	if len(resp.Choices) == 0 {
		return tools.Fail("Morph API returned no choices")
	}
	merged := resp.Choices[0].Message.Content
	if merged == "" {
		return tools.Fail("Morph API returned an empty file")
	}

	info, _ := os.Stat(resolved)
	mode := os.FileMode(0o644)
	if info != nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(resolved, []byte(merged), mode); err != nil {
		return tools.Fail("Error writing %s: %v", targetFile, err)
	}

	before, after := countLines(string(original)), countLines(merged)
	return tools.OK(fmt.Sprintf("Applied edit to %s (%d -> %d lines)", targetFile, before, after))
}

func fastApplyPrompt(instructions, code, update string) string {
	var b strings.Builder
	b.WriteString("<instruction>" + instructions + "</instruction>\n")
	b.WriteString("<code>" + code + "</code>\n")
	b.WriteString("<update>" + update + "</update>")
	return b.String()
}
