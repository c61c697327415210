package gateway

// ToolCall is one inbound invocation: a tool name plus raw arguments.
type ToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"arguments"`
}

// Result is the terminal value of a dispatch: a success payload or a
// structured error, never both.
type Result struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Err    *Error                 `json:"error,omitempty"`
}

func success(data map[string]interface{}) Result {
	return Result{Status: "success", Data: data}
}

func failure(err error) Result {
	return Result{Status: "error", Err: classify(err)}
}
