package llm

import (
	"context"
	"drivechat/app/config"
	"drivechat/app/service/command"
	"drivechat/app/service/history"
	"encoding/json"
	"net/http"

	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI talks to any OpenAI compatible endpoint through langchaingo
type OpenAI struct {
	llm         llms.Model
	model       string
	temperature float64
}

func NewOpenAI(cfg config.Model) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.OpenAI.Token),
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, oops.
			In("llm").
			With("base_url", cfg.OpenAI.BaseURL).
			Wrapf(err, "failed to create openai client")
	}

	return &OpenAI{
		llm:         client,
		model:       cfg.OpenAI.Model,
		temperature: float64(cfg.Temperature),
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (history.Turn, error) {
	messages, err := toOpenAIMessages(req.System, req.History)
	if err != nil {
		return history.Turn{}, err
	}

	res, err := o.llm.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{toOpenAITool(req.Tool)}),
		llms.WithTemperature(o.temperature),
	)
	if err != nil {
		return history.Turn{}, oops.
			In("llm").
			With("model", o.model).
			Wrapf(err, "openai generate content")
	}

	if len(res.Choices) == 0 || res.Choices[0] == nil {
		return history.Turn{Role: history.RoleModel}, nil
	}

	return fromOpenAIChoice(res.Choices[0])
}

func toOpenAITool(schema command.Schema) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  schema.JSONSchema(),
		},
	}
}

func toOpenAIMessages(system string, turns []history.Turn) ([]llms.MessageContent, error) {
	turns = answeredOnly(turns)

	messages := make([]llms.MessageContent, 0, len(turns)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))

	for _, turn := range turns {
		switch turn.Role {
		case history.RoleUser:
			text, _ := turn.FirstText()
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))

		case history.RoleModel:
			calls := turn.Calls()
			if len(calls) == 0 {
				text, _ := turn.FirstText()
				messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, text))
				continue
			}

			// assistant messages carrying tool calls are sent without text
			parts := make([]llms.ContentPart, 0, len(calls))
			for _, call := range calls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					return nil, oops.In("llm").Wrapf(err, "failed to encode function call arguments")
				}

				parts = append(parts, llms.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})

		case history.RoleFunction:
			// one tool message per result
			for _, result := range turn.Results() {
				content, err := json.Marshal(map[string]string{
					"status": result.Status,
					"detail": result.Detail,
				})
				if err != nil {
					return nil, oops.In("llm").Wrapf(err, "failed to encode function result")
				}

				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{
						llms.ToolCallResponse{
							ToolCallID: result.ID,
							Name:       result.Name,
							Content:    string(content),
						},
					},
				})
			}
		}
	}

	return messages, nil
}

func fromOpenAIChoice(choice *llms.ContentChoice) (history.Turn, error) {
	turn := history.Turn{Role: history.RoleModel}

	if choice.Content != "" {
		turn.Parts = append(turn.Parts, history.Part{Text: choice.Content})
	}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}

		var args map[string]any
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return history.Turn{}, oops.
					In("llm").
					With("function", tc.FunctionCall.Name).
					Wrapf(err, "malformed function call arguments")
			}
		}

		turn.Parts = append(turn.Parts, history.Part{
			Call: &history.FunctionCall{
				ID:   tc.ID,
				Name: tc.FunctionCall.Name,
				Args: command.StringArgs(args),
			},
		})
	}

	return turn, nil
}
