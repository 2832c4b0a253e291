package domain

// InvocationRequest is the parsed form of an incoming cross-partition
// inference request.
type InvocationRequest struct {
	ModelID       string
	ContentType   string
	Accept        string
	Body          string
	SourceIP      string
	UserArn       string
	RoutingMethod RoutingMethod
	APIPath       string
}

// InvocationResult carries the upstream Bedrock response plus routing
// metadata surfaced to the caller and the audit log.
type InvocationResult struct {
	Body                 string `json:"body"`
	ContentType          string `json:"contentType"`
	RoutingMethod        string `json:"routing_method"`
	EndpointUsed         string `json:"endpoint_used,omitempty"`
	AWSCredentialsUsed   bool   `json:"aws_credentials_used,omitempty"`
	InferenceProfileUsed string `json:"inference_profile_used,omitempty"`
}

// Credentials holds the commercial-partition secrets fetched from Secrets
// Manager. Either BedrockAPIKey or the AWS key pair is populated.
type Credentials struct {
	BedrockAPIKey      string `json:"bedrock_api_key,omitempty"`
	BedrockBearerToken string `json:"bedrock_bearer_token,omitempty"`
	AWSAccessKeyID     string `json:"aws_access_key_id,omitempty"`
	AWSSecretAccessKey string `json:"aws_secret_access_key,omitempty"`
	Region             string `json:"region,omitempty"`
}

// HasAPIKey reports whether the API-key invocation path is available.
func (c Credentials) HasAPIKey() bool {
	return c.BedrockAPIKey != ""
}

// HasAWSKeys reports whether the SDK invocation path is available.
func (c Credentials) HasAWSKeys() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}
