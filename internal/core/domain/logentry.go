package domain

// RequestLogEntry is one DynamoDB item per request, kept for 30 days via the
// TTL attribute. Attribute names match the dashboard's expectations.
type RequestLogEntry struct {
	RequestID            string `dynamodbav:"requestId"`
	Timestamp            string `dynamodbav:"timestamp"`
	SourcePartition      string `dynamodbav:"sourcePartition"`
	DestinationPartition string `dynamodbav:"destinationPartition"`
	RoutingMethod        string `dynamodbav:"routingMethod"`
	VPCEndpointsUsed     bool   `dynamodbav:"vpcEndpointsUsed,omitempty"`
	ModelID              string `dynamodbav:"modelId"`
	UserArn              string `dynamodbav:"userArn"`
	SourceIP             string `dynamodbav:"sourceIP"`
	APIPath              string `dynamodbav:"apiPath,omitempty"`
	RequestSize          int    `dynamodbav:"requestSize"`
	ResponseSize         int    `dynamodbav:"responseSize"`
	LatencyMs            int64  `dynamodbav:"latency"`
	Success              bool   `dynamodbav:"success"`
	StatusCode           int    `dynamodbav:"statusCode"`
	ErrorMessage         string `dynamodbav:"errorMessage,omitempty"`
	EndpointUsed         string `dynamodbav:"endpointUsed,omitempty"`
	AWSCredentialsUsed   bool   `dynamodbav:"awsCredentialsUsed,omitempty"`
	InferenceProfileUsed string `dynamodbav:"inferenceProfileUsed,omitempty"`
	TTL                  int64  `dynamodbav:"ttl"`
}
