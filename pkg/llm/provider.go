package llm

import (
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/core"
	"github.com/XiaoConstantine/dspy-go/pkg/llms"
)

// Configure builds the provider LLM and installs it as the process-wide
// default used by every Predict module. provider is "ollama" or "gemini".
func Configure(provider, model, baseURL, apiKey string) (core.LLM, error) {
	var (
		llm core.LLM
		err error
	)

	switch strings.ToLower(provider) {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		llm, err = llms.NewOllamaLLM(
			core.ModelID(model),
			llms.WithBaseURL(baseURL),
			llms.WithOpenAIAPI(),
		)
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		llms.EnsureFactory()
		llm, err = llms.NewGeminiLLM(apiKey, core.ModelID(model))
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want ollama or gemini)", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s llm: %w", provider, err)
	}

	core.SetDefaultLLM(llm)
	return llm, nil
}
