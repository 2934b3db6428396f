package llm

import (
	"bytes"
	"context"
	"drivechat/app/config"
	"drivechat/app/service/command"
	"drivechat/app/service/history"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"google.golang.org/genai"
)

type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGemini(ctx context.Context, cfg config.Model) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}

	if cfg.Gemini.Backend == config.BackendAPI {
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = cfg.Gemini.APIKey
	} else {
		clientConfig.Project = cfg.Gemini.Project
		clientConfig.Location = cfg.Gemini.Location
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, oops.
			In("llm").
			With("backend", cfg.Gemini.Backend).
			Wrapf(err, "failed to create genai client")
	}

	return &Gemini{
		client:      client,
		model:       cfg.Gemini.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (history.Turn, error) {
	temperature := g.temperature

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Tools:             []*genai.Tool{toGenaiTool(req.Tool)},
		Temperature:       &temperature,
	}

	start := time.Now()

	res, err := g.client.Models.GenerateContent(ctx, g.model, toGenaiContents(req.History), genCfg)
	if err != nil {
		return history.Turn{}, oops.
			In("llm").
			With("model", g.model).
			Wrapf(err, "gemini generate content")
	}

	slog.Debug("Gemini replied",
		slog.String("model", g.model),
		slog.Duration("took", time.Since(start)),
	)

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return history.Turn{Role: history.RoleModel}, nil
	}

	return fromGenaiContent(res.Candidates[0].Content), nil
}

func toGenaiTool(schema command.Schema) *genai.Tool {
	properties := make(map[string]*genai.Schema, len(schema.Parameters))

	for _, p := range schema.Parameters {
		prop := &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
		}
		if p.Default != "" {
			prop.Default = p.Default
		}
		properties[p.Name] = prop
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: properties,
					Required:   schema.Required(),
				},
			},
		},
	}
}

func toGenaiContents(turns []history.Turn) []*genai.Content {
	turns = answeredOnly(turns)
	contents := make([]*genai.Content, 0, len(turns))

	for _, turn := range turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))

		for _, p := range turn.Parts {
			switch {
			case p.Call != nil:
				args := make(map[string]any, len(p.Call.Args))
				for k, v := range p.Call.Args {
					args[k] = v
				}

				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   p.Call.ID,
						Name: p.Call.Name,
						Args: args,
					},
					ThoughtSignature: bytes.Clone(p.Call.Signature),
				})
			case p.Result != nil:
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:   p.Result.ID,
						Name: p.Result.Name,
						Response: map[string]any{
							"status": p.Result.Status,
							"detail": p.Result.Detail,
						},
					},
				})
			default:
				parts = append(parts, genai.NewPartFromText(p.Text))
			}
		}

		// function results travel back to Gemini with the user role
		var role genai.Role = genai.RoleUser
		if turn.Role == history.RoleModel {
			role = genai.RoleModel
		}

		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	return contents
}

func fromGenaiContent(content *genai.Content) history.Turn {
	turn := history.Turn{Role: history.RoleModel}

	for _, p := range content.Parts {
		if p == nil || p.Thought {
			continue
		}

		switch {
		case p.FunctionCall != nil:
			turn.Parts = append(turn.Parts, history.Part{
				Call: &history.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: command.StringArgs(p.FunctionCall.Args),
					// thinking models reject a follow-up that drops the signature
					Signature: bytes.Clone(p.ThoughtSignature),
				},
			})
		case p.Text != "":
			turn.Parts = append(turn.Parts, history.Part{Text: p.Text})
		}
	}

	return turn
}
