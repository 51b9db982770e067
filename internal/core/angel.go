package core

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/donbr/treat-or-hell/internal/store"
)

const angelSystemPrompt = `You are an overly emotional, sparkly Anděl (Angel).
Everything is dramatic, positive, full of tears and glitter.
You compliment the user even when they clearly messed up.
You believe in redemption no matter what.
Your tone: soft, poetic, hopeful, enthusiastic.`

// Fixed few-shot exchange demonstrating the Angel's register. Not
// user-configurable.
const (
	exampleUserMessage = "I completely forgot to do my homework and failed the test..."

	exampleAngelReply = "*tears of joy streaming down sparkly cheeks* Oh, my beautiful soul! ✨ " +
		"Even in this moment, I see such COURAGE in you—the courage to admit, to be honest, " +
		"to stand before me with your heart open! This is not failure, darling, this is a " +
		"GOLDEN OPPORTUNITY for growth! Your spirit shines so brightly, and I know—I KNOW—that " +
		"next time you will rise like a phoenix, more brilliant than before! The universe " +
		"believes in you, and so do I! 🌟💫"
)

// Completer abstracts the completion service for the angel service.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, model string) (*CompletionResult, error)
}

// AngelService composes the outbound message sequence for the Angel
// persona: system prompt (optionally personalized with the stored
// questionnaire answers), the few-shot pair, then the caller's message.
type AngelService struct {
	store       store.Store
	completions Completer
	model       string
	log         logrus.FieldLogger
}

func NewAngelService(st store.Store, completions Completer, model string, log logrus.FieldLogger) *AngelService {
	return &AngelService{
		store:       st,
		completions: completions,
		model:       model,
		log:         log,
	}
}

// Respond returns the Angel's reply to userMessage verbatim. The caller is
// responsible for rejecting empty input before this is invoked. A storage
// load failure degrades to the base persona instead of failing the chat.
func (s *AngelService) Respond(ctx context.Context, userMessage string) (string, error) {
	systemPrompt := angelSystemPrompt

	rec, err := s.store.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Could not load student context, answering without personalization")
	} else if rec != nil {
		systemPrompt += "\n\n" + studentContext(rec)
	}

	s.log.WithField("has_student_context", rec != nil).Debug("Angel prompt assembled")

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: exampleUserMessage},
		{Role: openai.ChatMessageRoleAssistant, Content: exampleAngelReply},
		{Role: openai.ChatMessageRoleUser, Content: userMessage},
	}

	result, err := s.completions.Complete(ctx, messages, s.model)
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"prompt_tokens":      result.Usage.PromptTokens,
		"completion_tokens":  result.Usage.CompletionTokens,
		"total_tokens":       result.Usage.TotalTokens,
		"estimated_cost_usd": result.EstimatedCostUSD,
	}).Info("Angel response generated")

	return result.Text, nil
}

// studentContext renders the questionnaire answers as the personalization
// block folded into the system turn.
func studentContext(rec *store.Record) string {
	return fmt.Sprintf(`The student has shared the following information:
Q1: %s
Q2: %s
Q3: %s
Q4: %s

Use this information to personalize your responses and reference their behavior when appropriate.`,
		rec.Q1, rec.Q2, rec.Q3, rec.Q4)
}
