package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CFNAPI is the CloudFormation surface used for output extraction.
type CFNAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// EC2API is the EC2 surface used for VPN tunnel telemetry.
type EC2API interface {
	DescribeVpnConnections(ctx context.Context, params *ec2.DescribeVpnConnectionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpnConnectionsOutput, error)
}

// PartitionConfig holds the stack outputs gathered from one partition.
type PartitionConfig struct {
	Region        string                       `json:"region"`
	Profile       string                       `json:"profile"`
	StackOutputs  map[string]map[string]string `json:"stack_outputs"`
	MissingStacks []string                     `json:"missing_stacks,omitempty"`
}

// TunnelStatus is the telemetry for one VPN tunnel endpoint.
type TunnelStatus struct {
	VPNConnectionID string `json:"vpn_connection_id"`
	OutsideIP       string `json:"outside_ip"`
	Status          string `json:"status"`
	StatusMessage   string `json:"status_message,omitempty"`
}

// ConfigData is the extracted VPN configuration written to
// vpn-config-data.json.
type ConfigData struct {
	ProjectName string          `json:"project_name"`
	Environment string          `json:"environment"`
	ExtractedAt string          `json:"extracted_at"`
	GovCloud    PartitionConfig `json:"govcloud"`
	Commercial  PartitionConfig `json:"commercial"`
	Tunnels     []TunnelStatus  `json:"vpn_tunnels"`
}

// Validation is the outcome written to vpn-config-validation.json.
type Validation struct {
	Valid       bool     `json:"valid"`
	ValidatedAt string   `json:"validated_at"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// collectOutputs describes every stack in the list and flattens its outputs.
// Missing stacks are recorded rather than failing the run; validation
// decides whether they matter.
func collectOutputs(ctx context.Context, cfn CFNAPI, stacks []string) (map[string]map[string]string, []string) {
	outputs := map[string]map[string]string{}
	var missing []string

	for _, stack := range stacks {
		out, err := cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stack),
		})
		if err != nil || len(out.Stacks) == 0 {
			missing = append(missing, stack)
			continue
		}
		outputs[stack] = flattenOutputs(out.Stacks[0].Outputs)
	}
	return outputs, missing
}

func flattenOutputs(outs []cfntypes.Output) map[string]string {
	flat := make(map[string]string, len(outs))
	for _, o := range outs {
		flat[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return flat
}

// collectTunnels pulls telemetry for every VPN connection visible in the
// partition.
func collectTunnels(ctx context.Context, client EC2API) ([]TunnelStatus, error) {
	out, err := client.DescribeVpnConnections(ctx, &ec2.DescribeVpnConnectionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describing vpn connections: %w", err)
	}

	var tunnels []TunnelStatus
	for _, conn := range out.VpnConnections {
		for _, tel := range conn.VgwTelemetry {
			tunnels = append(tunnels, TunnelStatus{
				VPNConnectionID: aws.ToString(conn.VpnConnectionId),
				OutsideIP:       aws.ToString(tel.OutsideIpAddress),
				Status:          string(tel.Status),
				StatusMessage:   aws.ToString(tel.StatusMessage),
			})
		}
	}
	return tunnels, nil
}

// validate checks the extracted configuration for deployability: both
// partitions need their stacks, and at least one tunnel must be up.
func validate(data *ConfigData, now time.Time) Validation {
	v := Validation{Valid: true, ValidatedAt: now.UTC().Format(time.RFC3339)}

	for _, p := range []struct {
		name string
		cfg  PartitionConfig
	}{{"govcloud", data.GovCloud}, {"commercial", data.Commercial}} {
		if len(p.cfg.MissingStacks) > 0 {
			v.Valid = false
			v.Errors = append(v.Errors, fmt.Sprintf(
				"%s partition missing stacks: %s", p.name, strings.Join(p.cfg.MissingStacks, ", ")))
		}
		if len(p.cfg.StackOutputs) == 0 {
			v.Valid = false
			v.Errors = append(v.Errors, fmt.Sprintf("%s partition has no stack outputs", p.name))
		}
	}

	if len(data.Tunnels) == 0 {
		v.Warnings = append(v.Warnings, "no vpn tunnels found; vpn routing will fail until the tunnel is established")
	} else {
		up := 0
		for _, t := range data.Tunnels {
			if strings.EqualFold(t.Status, "UP") {
				up++
			}
		}
		if up == 0 {
			v.Valid = false
			v.Errors = append(v.Errors, "all vpn tunnels are down")
		} else if up < len(data.Tunnels) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("%d of %d vpn tunnels are down", len(data.Tunnels)-up, len(data.Tunnels)))
		}
	}
	return v
}

// endpointEnvVars maps well-known stack output keys to the environment
// variables the VPN Lambda reads.
var endpointEnvVars = map[string]string{
	"SecretsManagerEndpoint":    "VPC_ENDPOINT_SECRETS",
	"DynamoDBEndpoint":          "VPC_ENDPOINT_DYNAMODB",
	"CloudWatchLogsEndpoint":    "VPC_ENDPOINT_LOGS",
	"MonitoringEndpoint":        "VPC_ENDPOINT_MONITORING",
	"LambdaEndpoint":            "VPC_ENDPOINT_LAMBDA",
	"STSEndpoint":               "VPC_ENDPOINT_STS",
	"CommercialBedrockEndpoint": "COMMERCIAL_BEDROCK_ENDPOINT",
	"RequestLogTableName":       "REQUEST_LOG_TABLE",
	"CommercialCredentialsArn":  "COMMERCIAL_CREDENTIALS_SECRET",
	"AuthSecretsArn":            "AUTH_SECRETS_SECRET",
}

// renderShellScript builds config-vpn.sh: export statements for every
// recognized output across both partitions, GovCloud winning ties since the
// Lambdas run there.
func renderShellScript(data *ConfigData) string {
	exports := map[string]string{}
	for _, p := range []PartitionConfig{data.Commercial, data.GovCloud} {
		for _, outs := range p.StackOutputs {
			for key, value := range outs {
				if env, ok := endpointEnvVars[key]; ok && value != "" {
					exports[env] = value
				}
			}
		}
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "# VPN configuration for %s (%s), extracted %s\n",
		data.ProjectName, data.Environment, data.ExtractedAt)
	b.WriteString("export ROUTING_METHOD=vpn\n")

	keys := make([]string, 0, len(exports))
	for k := range exports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=%q\n", k, exports[k])
	}
	return b.String()
}
