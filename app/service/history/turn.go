package history

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

type FunctionCall struct {
	// Provider assigned id, may be empty
	ID   string
	Name string
	Args map[string]string
	// Opaque provider signature echoed back on the next request
	Signature []byte
}

type FunctionResult struct {
	// Id of the call this result answers, may be empty
	ID     string
	Name   string
	Status string
	Detail string
}

// Part holds exactly one of Text, Call or Result
type Part struct {
	Text   string
	Call   *FunctionCall
	Result *FunctionResult
}

type Turn struct {
	Role  Role
	Parts []Part
}

func UserText(text string) Turn {
	return Turn{
		Role:  RoleUser,
		Parts: []Part{{Text: text}},
	}
}

func ModelText(text string) Turn {
	return Turn{
		Role:  RoleModel,
		Parts: []Part{{Text: text}},
	}
}

func ModelCall(call FunctionCall) Turn {
	return Turn{
		Role:  RoleModel,
		Parts: []Part{{Call: &call}},
	}
}

func FunctionResultTurn(result FunctionResult) Turn {
	return Turn{
		Role:  RoleFunction,
		Parts: []Part{{Result: &result}},
	}
}

// FirstText returns the first non-empty text part
func (t Turn) FirstText() (string, bool) {
	idx := pie.FindFirstUsing(t.Parts, func(p Part) bool {
		return p.Call == nil && p.Result == nil && strings.TrimSpace(p.Text) != ""
	})
	if idx < 0 {
		return "", false
	}

	return t.Parts[idx].Text, true
}

// FirstCall returns the first function call part with the given name
func (t Turn) FirstCall(name string) (FunctionCall, bool) {
	idx := pie.FindFirstUsing(t.Parts, func(p Part) bool {
		return p.Call != nil && p.Call.Name == name
	})
	if idx < 0 {
		return FunctionCall{}, false
	}

	return *t.Parts[idx].Call, true
}

func (t Turn) Calls() []FunctionCall {
	calls := make([]FunctionCall, 0, len(t.Parts))
	for _, p := range t.Parts {
		if p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

func (t Turn) Results() []FunctionResult {
	results := make([]FunctionResult, 0, len(t.Parts))
	for _, p := range t.Parts {
		if p.Result != nil {
			results = append(results, *p.Result)
		}
	}
	return results
}

// Clone deep-copies the turn so stored history is never shared with callers
func (t Turn) Clone() Turn {
	parts := make([]Part, len(t.Parts))
	for i, p := range t.Parts {
		parts[i] = Part{Text: p.Text}
		if p.Call != nil {
			call := *p.Call
			call.Args = cloneArgs(p.Call.Args)
			call.Signature = bytes.Clone(p.Call.Signature)
			parts[i].Call = &call
		}
		if p.Result != nil {
			result := *p.Result
			parts[i].Result = &result
		}
	}

	return Turn{Role: t.Role, Parts: parts}
}

func CloneAll(turns []Turn) []Turn {
	result := make([]Turn, len(turns))
	for i, t := range turns {
		result[i] = t.Clone()
	}
	return result
}

func (t Turn) String() string {
	var builder strings.Builder

	for i, p := range t.Parts {
		if i > 0 {
			builder.WriteString(" | ")
		}

		switch {
		case p.Call != nil:
			builder.WriteString(fmt.Sprintf("call %s(%v)", p.Call.Name, p.Call.Args))
		case p.Result != nil:
			builder.WriteString(fmt.Sprintf("result %s: %s %s", p.Result.Name, p.Result.Status, p.Result.Detail))
		default:
			builder.WriteString(p.Text)
		}
	}

	return fmt.Sprintf("%s: %s", t.Role, builder.String())
}

func cloneArgs(args map[string]string) map[string]string {
	if args == nil {
		return nil
	}

	result := make(map[string]string, len(args))
	for k, v := range args {
		result[k] = v
	}
	return result
}
