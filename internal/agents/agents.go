// Package agents holds the single-purpose model agents behind the knowledge and sales
// endpoints. Each agent gathers input with a tool call, asks the model for schema-checked JSON
// and optionally stores the result.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/fetch"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/schemas"
	"go.uber.org/zap"
)

// maxToolInput bounds the scraped or searched text placed in a prompt.
const maxToolInput = 20000

// Options are shared by every agent.
type Options struct {
	Model     string // provider model ID; empty uses llm.DefaultModel
	MaxTokens int
	Retry     fetch.RetryPolicy
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = llm.DefaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = llm.DefaultMaxTokens
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = fetch.DefaultRetryPolicy()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// runModel asks the model for JSON, checks it against schema and decodes it into out.
func runModel(ctx context.Context, client llm.Client, opts Options, agent, system, prompt, schema string, out any) error {
	raw, err := client.Generate(ctx, llm.Request{
		Model:     opts.Model,
		System:    system,
		Prompt:    prompt,
		MaxTokens: opts.MaxTokens,
		JSON:      true,
	})
	if err != nil {
		if llm.IsCreditExhausted(err) {
			return apierr.CreditsExhausted("Insufficient OpenRouter credits. Error: "+err.Error(), err)
		}
		return apierr.Agent(apierr.CodeAgentFailed, fmt.Sprintf("%s agent failed: %v", agent, err), err)
	}
	if err := schemas.Validate(schema, raw); err != nil {
		return apierr.Agent(apierr.CodeAgentOutput, agent+" agent returned malformed output", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return apierr.Agent(apierr.CodeAgentOutput, agent+" agent returned malformed output", err)
	}
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
