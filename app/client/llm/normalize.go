package llm

import "drivechat/app/service/history"

// answeredOnly drops function calls that have no matching result in the following turn,
// every call sent to a provider must be answered. Turns left without parts are dropped as well.
func answeredOnly(turns []history.Turn) []history.Turn {
	result := make([]history.Turn, 0, len(turns))

	for i, turn := range turns {
		if turn.Role != history.RoleModel || len(turn.Calls()) == 0 {
			if len(turn.Parts) > 0 {
				result = append(result, turn)
			}
			continue
		}

		var results []history.FunctionResult
		if i+1 < len(turns) && turns[i+1].Role == history.RoleFunction {
			results = turns[i+1].Results()
		}

		used := make([]bool, len(results))
		parts := make([]history.Part, 0, len(turn.Parts))

		for _, p := range turn.Parts {
			if p.Call == nil {
				parts = append(parts, p)
				continue
			}

			if idx := matchResult(*p.Call, results, used); idx >= 0 {
				used[idx] = true
				parts = append(parts, p)
			}
		}

		if len(parts) > 0 {
			result = append(result, history.Turn{Role: turn.Role, Parts: parts})
		}
	}

	return result
}

func matchResult(call history.FunctionCall, results []history.FunctionResult, used []bool) int {
	for i, r := range results {
		if used[i] {
			continue
		}

		if call.ID != "" && r.ID != "" {
			if call.ID == r.ID {
				return i
			}
			continue
		}

		if call.Name == r.Name {
			return i
		}
	}

	return -1
}
