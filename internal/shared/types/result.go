package types

// MessageType classifies command output for the renderer.
type MessageType string

const (
	MessageNormal  MessageType = "normal"
	MessageSuccess MessageType = "success"
	MessageInfo    MessageType = "info"
	MessageWarning MessageType = "warning"
	MessageError   MessageType = "error"
)

// Effect instructs the renderer to perform a side action on success.
type Effect string

const (
	EffectNone        Effect = ""
	EffectClearScreen Effect = "clear_screen"
	EffectReboot      Effect = "reboot"
)

// ErrorInfo carries a single-line failure message plus an optional hint.
type ErrorInfo struct {
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is the outcome of one command invocation. Success with empty
// output is legal; Success drives && and || chaining.
type Result struct {
	Success         bool        `json:"success"`
	Output          string      `json:"output,omitempty"`
	MessageType     MessageType `json:"message_type,omitempty"`
	StateModified   bool        `json:"state_modified,omitempty"`
	Effect          Effect      `json:"effect,omitempty"`
	AsBlock         bool        `json:"as_block,omitempty"`
	SuppressNewline bool        `json:"suppress_newline,omitempty"`
	Error           *ErrorInfo  `json:"error,omitempty"`
}

// Ok returns a successful result carrying output.
func Ok(output string) Result {
	return Result{Success: true, Output: output}
}

// OkModified returns a successful result that requires a state save.
func OkModified(output string) Result {
	return Result{Success: true, Output: output, StateModified: true}
}

// Fail returns a failed result with a message.
func Fail(message string) Result {
	return Result{Success: false, Error: &ErrorInfo{Message: message}}
}

// FailHint returns a failed result with a message and a suggestion line.
func FailHint(message, suggestion string) Result {
	return Result{Success: false, Error: &ErrorInfo{Message: message, Suggestion: suggestion}}
}

// FailErr converts an error into a failed result, preserving a kernel
// error's suggestion when present.
func FailErr(err error) Result {
	if ke, ok := err.(*KernelError); ok {
		return Result{Success: false, Error: &ErrorInfo{Message: ke.Message, Suggestion: ke.Suggestion}}
	}
	return Fail(err.Error())
}
