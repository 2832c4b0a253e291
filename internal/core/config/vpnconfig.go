package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// VPNConfigFile describes which CloudFormation stacks the vpn-config CLI
// extracts, per partition. A YAML file may override the defaults derived
// from project name and environment.
type VPNConfigFile struct {
	ProjectName       string   `yaml:"project_name"`
	Environment       string   `yaml:"environment"`
	GovCloudProfile   string   `yaml:"govcloud_profile"`
	CommercialProfile string   `yaml:"commercial_profile"`
	GovCloudRegion    string   `yaml:"govcloud_region"`
	CommercialRegion  string   `yaml:"commercial_region"`
	GovCloudStacks    []string `yaml:"govcloud_stacks"`
	CommercialStacks  []string `yaml:"commercial_stacks"`
}

// LoadVPNConfig reads a YAML stacks file, expanding environment variables in
// its content, and fills in defaults for anything unset.
func LoadVPNConfig(path string) (*VPNConfigFile, error) {
	var cfg VPNConfigFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read vpn config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse vpn config file: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields, deriving the stack lists from the
// project name and environment.
func (c *VPNConfigFile) ApplyDefaults() {
	if c.ProjectName == "" {
		c.ProjectName = "cross-partition-inference"
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.GovCloudProfile == "" {
		c.GovCloudProfile = "govcloud"
	}
	if c.CommercialProfile == "" {
		c.CommercialProfile = "commercial"
	}
	if c.GovCloudRegion == "" {
		c.GovCloudRegion = "us-gov-west-1"
	}
	if c.CommercialRegion == "" {
		c.CommercialRegion = "us-east-1"
	}
	if len(c.GovCloudStacks) == 0 {
		prefix := c.ProjectName + "-govcloud-"
		c.GovCloudStacks = []string{
			prefix + "vpc-" + c.Environment,
			prefix + "vpc-endpoints-" + c.Environment,
			prefix + "vpn-gateway-" + c.Environment,
			prefix + "lambda-" + c.Environment,
			prefix + "monitoring-" + c.Environment,
		}
	}
	if len(c.CommercialStacks) == 0 {
		prefix := c.ProjectName + "-commercial-"
		c.CommercialStacks = []string{
			prefix + "vpc-" + c.Environment,
			prefix + "vpc-endpoints-" + c.Environment,
			prefix + "vpn-gateway-" + c.Environment,
			prefix + "monitoring-" + c.Environment,
		}
	}
}
