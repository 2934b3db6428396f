package llm

import (
	"context"
	"drivechat/app/service/command"
	"drivechat/app/service/history"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

func triggerHistory() []history.Turn {
	return []history.Turn{
		history.UserText("go forward"),
		{
			Role: history.RoleModel,
			Parts: []history.Part{
				{Call: &history.FunctionCall{ID: "c1", Name: command.FunctionName, Args: map[string]string{"right_motors": "1", "left_motors": "1"}}},
				{Call: &history.FunctionCall{ID: "c2", Name: command.FunctionName, Args: map[string]string{"right_motors": "0", "left_motors": "0"}}},
			},
		},
		history.FunctionResultTurn(history.FunctionResult{ID: "c1", Name: command.FunctionName, Status: "ok", Detail: "sent"}),
		history.ModelText("Moving forward at speed 7"),
	}
}

func TestAnsweredOnlyDropsUnansweredCalls(t *testing.T) {
	got := answeredOnly(triggerHistory())

	require.Len(t, got, 4)
	calls := got[1].Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
}

func TestAnsweredOnlyMatchesByNameWithoutIDs(t *testing.T) {
	turns := []history.Turn{
		history.UserText("spin"),
		{
			Role: history.RoleModel,
			Parts: []history.Part{
				{Text: "Spinning"},
				{Call: &history.FunctionCall{Name: command.FunctionName}},
				{Call: &history.FunctionCall{Name: command.FunctionName}},
			},
		},
		history.FunctionResultTurn(history.FunctionResult{Name: command.FunctionName, Status: "error", Detail: "refused"}),
	}

	got := answeredOnly(turns)

	want := []history.Turn{
		history.UserText("spin"),
		{
			Role: history.RoleModel,
			Parts: []history.Part{
				{Text: "Spinning"},
				{Call: &history.FunctionCall{Name: command.FunctionName}},
			},
		},
		history.FunctionResultTurn(history.FunctionResult{Name: command.FunctionName, Status: "error", Detail: "refused"}),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
}

func TestAnsweredOnlyDropsEmptyTurns(t *testing.T) {
	turns := []history.Turn{
		history.UserText("hi"),
		history.ModelCall(history.FunctionCall{Name: command.FunctionName}),
		{Role: history.RoleModel},
	}

	got := answeredOnly(turns)
	require.Len(t, got, 1)
	assert.Equal(t, history.RoleUser, got[0].Role)
}

func TestToGenaiContents(t *testing.T) {
	contents := toGenaiContents(triggerHistory())
	require.Len(t, contents, 4)

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, "go forward", contents[0].Parts[0].Text)

	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	assert.Equal(t, command.FunctionName, contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "1", contents[1].Parts[0].FunctionCall.Args["right_motors"])

	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
	assert.Equal(t, map[string]any{"status": "ok", "detail": "sent"}, contents[2].Parts[0].FunctionResponse.Response)

	assert.Equal(t, string(genai.RoleModel), contents[3].Role)
}

func TestFromGenaiContent(t *testing.T) {
	turn := fromGenaiContent(&genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "On it"},
			{FunctionCall: &genai.FunctionCall{Name: command.FunctionName, Args: map[string]any{
				"right_motors": "-1",
				"left_motors":  float64(1),
			}}},
			nil,
		},
	})

	want := history.Turn{
		Role: history.RoleModel,
		Parts: []history.Part{
			{Text: "On it"},
			{Call: &history.FunctionCall{Name: command.FunctionName, Args: map[string]string{
				"right_motors": "-1",
				"left_motors":  "1",
			}}},
		},
	}

	if diff := cmp.Diff(want, turn); diff != "" {
		t.Fatalf("unexpected turn (-want +got):\n%s", diff)
	}
}

func TestThoughtSignatureRoundTrip(t *testing.T) {
	signature := []byte{0x0a, 0x1b, 0x2c}

	turn := fromGenaiContent(&genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{
				FunctionCall: &genai.FunctionCall{ID: "c1", Name: command.FunctionName, Args: map[string]any{
					"right_motors": "1",
					"left_motors":  "1",
				}},
				ThoughtSignature: signature,
			},
		},
	})

	call, ok := turn.FirstCall(command.FunctionName)
	require.True(t, ok)
	assert.Equal(t, signature, call.Signature)

	turns := []history.Turn{
		history.UserText("go forward"),
		turn,
		history.FunctionResultTurn(history.FunctionResult{ID: "c1", Name: command.FunctionName, Status: "ok", Detail: "sent"}),
	}

	contents := toGenaiContents(turns)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, signature, contents[1].Parts[0].ThoughtSignature)
	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
}

func TestToGenaiTool(t *testing.T) {
	tool := toGenaiTool(command.Direction())
	require.Len(t, tool.FunctionDeclarations, 1)

	decl := tool.FunctionDeclarations[0]
	assert.Equal(t, command.FunctionName, decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"right_motors", "left_motors"}, decl.Parameters.Required)
	assert.Equal(t, "7", decl.Parameters.Properties["speed"].Default)
}

type fakeLLM struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	response *llms.ContentResponse
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	return f.response, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestOpenAIGenerate(t *testing.T) {
	fake := &fakeLLM{
		response: &llms.ContentResponse{
			Choices: []*llms.ContentChoice{
				{
					ToolCalls: []llms.ToolCall{
						{
							ID:   "call_1",
							Type: "function",
							FunctionCall: &llms.FunctionCall{
								Name:      command.FunctionName,
								Arguments: `{"right_motors":"1","left_motors":"-1","speed":42}`,
							},
						},
					},
				},
			},
		},
	}
	model := &OpenAI{llm: fake, model: "test"}

	turn, err := model.Generate(context.Background(), Request{
		System:  "be a robot",
		History: triggerHistory(),
		Tool:    command.Direction(),
	})
	require.NoError(t, err)

	call, ok := turn.FirstCall(command.FunctionName)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, map[string]string{"right_motors": "1", "left_motors": "-1", "speed": "42"}, call.Args)

	require.Len(t, fake.messages, 5)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.messages[2].Role)
	require.Len(t, fake.messages[2].Parts, 1)
	assert.Equal(t, "c1", fake.messages[2].Parts[0].(llms.ToolCall).ID)
	assert.Equal(t, llms.ChatMessageTypeTool, fake.messages[3].Role)
	assert.Equal(t, "c1", fake.messages[3].Parts[0].(llms.ToolCallResponse).ToolCallID)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.messages[4].Role)

	require.Len(t, fake.options.Tools, 1)
	assert.Equal(t, command.FunctionName, fake.options.Tools[0].Function.Name)
}

func TestOpenAIGenerateText(t *testing.T) {
	fake := &fakeLLM{
		response: &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{Content: "Hello, I am your robot car"}},
		},
	}
	model := &OpenAI{llm: fake}

	turn, err := model.Generate(context.Background(), Request{History: []history.Turn{history.UserText("hi")}, Tool: command.Direction()})
	require.NoError(t, err)

	text, ok := turn.FirstText()
	require.True(t, ok)
	assert.Equal(t, "Hello, I am your robot car", text)
}

func TestOpenAIGenerateErrors(t *testing.T) {
	model := &OpenAI{llm: &fakeLLM{err: errors.New("503 service unavailable")}}

	_, err := model.Generate(context.Background(), Request{History: []history.Turn{history.UserText("hi")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	malformed := &OpenAI{llm: &fakeLLM{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: []llms.ToolCall{{
			FunctionCall: &llms.FunctionCall{Name: command.FunctionName, Arguments: "{not json"},
		}}}},
	}}}

	_, err = malformed.Generate(context.Background(), Request{History: []history.Turn{history.UserText("hi")}})
	require.Error(t, err)
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	model := &OpenAI{llm: &fakeLLM{response: &llms.ContentResponse{}}}

	turn, err := model.Generate(context.Background(), Request{History: []history.Turn{history.UserText("hi")}})
	require.NoError(t, err)
	assert.Equal(t, history.RoleModel, turn.Role)
	assert.Empty(t, turn.Parts)
}
