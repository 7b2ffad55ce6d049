package cryptoworker

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// BuildAIPromptPayload is the request shape for TaskBuildAIPrompt: a
// caller-assembled digest of recent activity the prompt should summarize.
// The core never calls the AI endpoint itself (spec §1 Non-goals place the
// analysis UX out of scope); it only assembles the request shape a real
// client would send to POST /api/analyze.
type BuildAIPromptPayload struct {
	HabitNames    []string
	RecentStreaks map[string]int
	DaysAnalyzed  int
}

// AIPromptResult mirrors the {prompt, systemInstruction} shape spec §4.5 and
// §6 name, expressed with the anthropic-sdk-go message param types so a
// caller can hand it straight to a real request without reshaping it.
type AIPromptResult struct {
	Prompt            string
	SystemInstruction string
	Messages          []anthropic.MessageParam
}

func buildAIPrompt(p BuildAIPromptPayload) (AIPromptResult, error) {
	if len(p.HabitNames) == 0 {
		return AIPromptResult{}, fmt.Errorf("cryptoworker: build-ai-prompt needs at least one habit")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Over the last %d days, review these habits:\n", p.DaysAnalyzed)
	for _, name := range p.HabitNames {
		streak := p.RecentStreaks[name]
		fmt.Fprintf(&sb, "- %s: current streak %d\n", name, streak)
	}

	systemInstruction := "You are a terse, encouraging habit coach. Identify one concrete pattern and one suggestion."
	prompt := sb.String()

	return AIPromptResult{
		Prompt:            prompt,
		SystemInstruction: systemInstruction,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}, nil
}
