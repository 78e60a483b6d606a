package tools

const (
	// maxOutputBytes is the maximum size of tool output sent to the LLM.
	maxOutputBytes = 30 * 1024
	// maxDisplayBytes is the maximum size of tool output shown to the user.
	maxDisplayBytes = 100 * 1024
)
