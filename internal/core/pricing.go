package core

import "github.com/sashabaranov/go-openai"

// modelRate is USD per 1K tokens.
type modelRate struct {
	inputPerK  float64
	outputPerK float64
}

// Published rates as of mid-2025. Unknown models fall back to the
// gpt-4o-mini entry rather than reporting a zero cost.
var modelRates = map[string]modelRate{
	openai.GPT4oMini:     {inputPerK: 0.00015, outputPerK: 0.0006},
	openai.GPT4o:         {inputPerK: 0.0025, outputPerK: 0.01},
	openai.GPT3Dot5Turbo: {inputPerK: 0.0005, outputPerK: 0.0015},
}

var defaultRate = modelRates[openai.GPT4oMini]

func estimateCost(model string, u Usage) float64 {
	rate, ok := modelRates[model]
	if !ok {
		rate = defaultRate
	}
	return float64(u.PromptTokens)/1000*rate.inputPerK + float64(u.CompletionTokens)/1000*rate.outputPerK
}
