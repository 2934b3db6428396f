package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstTextSkipsCallsAndBlanks(t *testing.T) {
	turn := Turn{
		Role: RoleModel,
		Parts: []Part{
			{Call: &FunctionCall{Name: "get_direction"}},
			{Text: "   "},
			{Text: "Moving forward"},
			{Text: "ignored"},
		},
	}

	text, ok := turn.FirstText()
	require.True(t, ok)
	assert.Equal(t, "Moving forward", text)

	_, ok = ModelCall(FunctionCall{Name: "get_direction"}).FirstText()
	assert.False(t, ok)
}

func TestFirstCallMatchesByName(t *testing.T) {
	turn := Turn{
		Role: RoleModel,
		Parts: []Part{
			{Text: "sure"},
			{Call: &FunctionCall{Name: "other"}},
			{Call: &FunctionCall{ID: "a", Name: "get_direction", Args: map[string]string{"speed": "10"}}},
			{Call: &FunctionCall{ID: "b", Name: "get_direction"}},
		},
	}

	call, ok := turn.FirstCall("get_direction")
	require.True(t, ok)
	assert.Equal(t, "a", call.ID)
	assert.Len(t, turn.Calls(), 3)

	_, ok = UserText("hi").FirstCall("get_direction")
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	original := ModelCall(FunctionCall{Name: "get_direction", Args: map[string]string{"speed": "7"}, Signature: []byte{1, 2}})

	clone := original.Clone()
	clone.Parts[0].Call.Args["speed"] = "99"
	clone.Parts[0].Call.Signature[0] = 9

	assert.Equal(t, "7", original.Parts[0].Call.Args["speed"])
	assert.Equal(t, []byte{1, 2}, original.Parts[0].Call.Signature)
}

func TestString(t *testing.T) {
	turn := FunctionResultTurn(FunctionResult{Name: "get_direction", Status: "ok", Detail: "published"})
	assert.Equal(t, "function: result get_direction: ok published", turn.String())
}
