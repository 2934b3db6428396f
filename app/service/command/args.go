package command

import (
	"drivechat/app/service/history"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Args are the decoded get_direction arguments, kept verbatim as the model produced them
type Args struct {
	Right string `json:"right_motors" validate:"oneof=1 0 -1"`
	Left  string `json:"left_motors" validate:"oneof=1 0 -1"`
	Speed string `json:"speed" validate:"percent"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
		value, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		if err != nil {
			return false
		}
		return value >= 0 && value <= 100
	})

	return v
}

// Decode extracts get_direction arguments from a function call.
// Missing required fields yield *SchemaMismatchError, values are not range checked.
func Decode(call history.FunctionCall) (Args, error) {
	if call.Name != FunctionName {
		return Args{}, &SchemaMismatchError{Function: call.Name, Reason: "unknown function"}
	}

	var missing []string

	right, ok := call.Args[ParamRight]
	if !ok {
		missing = append(missing, ParamRight)
	}

	left, ok := call.Args[ParamLeft]
	if !ok {
		missing = append(missing, ParamLeft)
	}

	if len(missing) > 0 {
		return Args{}, &SchemaMismatchError{Function: call.Name, Missing: missing}
	}

	speed, ok := call.Args[ParamSpeed]
	if !ok || speed == "" {
		speed = DefaultSpeed
	}

	return Args{
		Right: right,
		Left:  left,
		Speed: speed,
	}, nil
}

// Validate checks motor values against 1/0/-1 and speed against 0-100
func (a Args) Validate() error {
	if err := validate.Struct(a); err != nil {
		return oops.
			In("command").
			With("right", a.Right, "left", a.Left, "speed", a.Speed).
			Wrapf(err, "invalid motor command")
	}
	return nil
}

// Format renders the wire message understood by the robot controller
func (a Args) Format() string {
	return fmt.Sprintf("right=%s,left=%s,speed=%s", a.Right, a.Left, a.Speed)
}

func (a Args) Map() map[string]string {
	return map[string]string{
		ParamRight: a.Right,
		ParamLeft:  a.Left,
		ParamSpeed: a.Speed,
	}
}

// StringArgs converts loosely typed function call arguments into strings
func StringArgs(args map[string]any) map[string]string {
	result := make(map[string]string, len(args))

	for k, v := range args {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			result[k] = value
		case float64:
			result[k] = strconv.FormatFloat(value, 'f', -1, 64)
		case float32:
			result[k] = strconv.FormatFloat(float64(value), 'f', -1, 32)
		case int:
			result[k] = strconv.Itoa(value)
		case int64:
			result[k] = strconv.FormatInt(value, 10)
		case bool:
			result[k] = strconv.FormatBool(value)
		default:
			data, err := json.Marshal(value)
			if err != nil {
				result[k] = fmt.Sprint(value)
				continue
			}
			result[k] = string(data)
		}
	}

	return result
}
