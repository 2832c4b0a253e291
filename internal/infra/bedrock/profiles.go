package bedrock

// Some models cannot be invoked with on-demand throughput and require the
// system-defined inference profile id instead of the bare model id.
var modelToProfile = map[string]string{
	"anthropic.claude-3-5-sonnet-20241022-v2:0": "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
	"anthropic.claude-3-5-sonnet-20240620-v1:0": "us.anthropic.claude-3-5-sonnet-20240620-v1:0",
	"anthropic.claude-3-5-haiku-20241022-v1:0":  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	"anthropic.claude-3-opus-20240229-v1:0":     "us.anthropic.claude-3-opus-20240229-v1:0",
	"anthropic.claude-3-sonnet-20240229-v1:0":   "us.anthropic.claude-3-sonnet-20240229-v1:0",
	"anthropic.claude-3-haiku-20240307-v1:0":    "us.anthropic.claude-3-haiku-20240307-v1:0",
}

// InferenceProfileID returns the system-defined inference profile for a
// model id, or "" when no mapping exists.
func InferenceProfileID(modelID string) string {
	return modelToProfile[modelID]
}
