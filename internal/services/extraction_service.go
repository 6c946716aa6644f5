package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edadapt/assessment-service/internal/validator"
	openai "github.com/sashabaranov/go-openai"
)

const extractionSystemPrompt = `You are an assessment author. Extract multiple-choice questions from the provided source text.
Respond with a JSON array only, no prose. Each element must have:
  "stage": one of "practice", "easy", "medium", "hard"
  "prompt": the question text
  "passage_title": optional passage title
  "passage_text": optional passage excerpt the question refers to
  "options": array of 4 answer option strings
  "correct_answer": the exact text of the correct option
Distribute questions across all four stages. Every question must have exactly one correct option taken verbatim from "options".`

type extractionService struct {
	client    *openai.Client
	model     string
	logger    *slog.Logger
	validator *validator.Validator
}

// NewExtractionService builds a service against any OpenAI-compatible
// gateway. baseURL may point at a self-hosted deployment.
func NewExtractionService(apiKey, baseURL, model string, logger *slog.Logger, v *validator.Validator) ExtractionService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &extractionService{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		logger:    logger,
		validator: v,
	}
}

func (s *extractionService) ExtractQuestions(ctx context.Context, req *ExtractionRequest) ([]ExtractedQuestion, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	count := req.QuestionCount
	if count == 0 {
		count = 12
	}

	userPrompt := fmt.Sprintf("Subject: %s\nNumber of questions: %d\n\nSource text:\n%s",
		req.Subject, count, req.SourceText)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			userMessage(userPrompt, req.ImageURLs),
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrExtractionEmptyOutput
	}

	questions, err := parseExtractedQuestions(resp.Choices[0].Message.Content)
	if err != nil {
		s.logger.Error("Failed to parse extraction output", "error", err)
		return nil, err
	}

	s.logger.Info("Questions extracted",
		"subject", req.Subject,
		"requested", count,
		"extracted", len(questions))
	return questions, nil
}

// userMessage builds the user turn, as multi-part content when page images
// accompany the text.
func userMessage(prompt string, imageURLs []string) openai.ChatCompletionMessage {
	if len(imageURLs) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	}

	parts := make([]openai.ChatMessagePart, 0, len(imageURLs)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, u := range imageURLs {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

// parseExtractedQuestions decodes the model output, tolerating a fenced code
// block around the JSON array, and drops malformed entries.
func parseExtractedQuestions(content string) ([]ExtractedQuestion, error) {
	raw := stripCodeFence(content)

	var parsed []ExtractedQuestion
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode output: %v", ErrExtractionFailed, err)
	}

	questions := make([]ExtractedQuestion, 0, len(parsed))
	for _, q := range parsed {
		if !q.Stage.Valid() || q.Prompt == "" || len(q.Options) < 2 {
			continue
		}
		if !containsOption(q.Options, q.CorrectAnswer) {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, ErrExtractionEmptyOutput
	}
	return questions, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}

// ToQuestionInputs converts accepted extraction output to question inputs
// ready for TestService.ReplaceQuestions.
func ToQuestionInputs(extracted []ExtractedQuestion) []QuestionInput {
	inputs := make([]QuestionInput, 0, len(extracted))
	for _, q := range extracted {
		answer := q.CorrectAnswer
		inputs = append(inputs, QuestionInput{
			Stage:         q.Stage,
			Prompt:        q.Prompt,
			PassageTitle:  q.PassageTitle,
			PassageText:   q.PassageText,
			Options:       q.Options,
			CorrectAnswer: &answer,
		})
	}
	return inputs
}
