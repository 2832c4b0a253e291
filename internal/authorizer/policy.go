package authorizer

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

func allowPolicy(principal, methodArn string, method domain.RoutingMethod) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   "Allow",
				Resource: []string{methodArn},
			}},
		},
		Context: map[string]any{
			"routing_method": method.String(),
			"principal":      principal,
		},
	}
}

func denyPolicy(methodArn string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: "unauthorized",
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   "Deny",
				Resource: []string{methodArn},
			}},
		},
	}
}
