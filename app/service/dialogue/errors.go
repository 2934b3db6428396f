package dialogue

import "fmt"

const (
	passInitial  = "initial"
	passFollowUp = "follow-up"
)

// ModelInvocationError means the model could not be reached, timed out or returned garbage
type ModelInvocationError struct {
	Pass string
	Err  error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed on %s pass: %v", e.Pass, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// EmptyReplyError means the model answered without the text part the turn needs
type EmptyReplyError struct {
	Pass string
}

func (e *EmptyReplyError) Error() string {
	return fmt.Sprintf("model returned no text on %s pass", e.Pass)
}
