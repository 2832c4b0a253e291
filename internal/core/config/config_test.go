package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.CredentialsSecret != "cross-partition-commercial-creds" {
		t.Errorf("CredentialsSecret = %s", cfg.CredentialsSecret)
	}
	if cfg.RequestLogTable != "cross-partition-requests" {
		t.Errorf("RequestLogTable = %s", cfg.RequestLogTable)
	}
	if cfg.TokenExpiryMinutes != 60 {
		t.Errorf("TokenExpiryMinutes = %d", cfg.TokenExpiryMinutes)
	}
	if len(cfg.AllowedRoutingMethods) != 2 {
		t.Errorf("AllowedRoutingMethods = %v", cfg.AllowedRoutingMethods)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REQUEST_LOG_TABLE", "custom-table")
	t.Setenv("ROUTING_METHOD", "vpn")
	t.Setenv("VPC_ENDPOINT_SECRETS", "https://vpce-123.secretsmanager.us-gov-west-1.vpce.amazonaws.com")
	t.Setenv("TOKEN_EXPIRY_MINUTES", "15")

	cfg := Load()
	if cfg.RequestLogTable != "custom-table" {
		t.Errorf("RequestLogTable = %s", cfg.RequestLogTable)
	}
	if cfg.RoutingMethod != "vpn" {
		t.Errorf("RoutingMethod = %s", cfg.RoutingMethod)
	}
	if cfg.VPCEndpoints.Secrets == "" {
		t.Error("VPCEndpoints.Secrets not picked up")
	}
	if cfg.TokenExpiryMinutes != 15 {
		t.Errorf("TokenExpiryMinutes = %d", cfg.TokenExpiryMinutes)
	}
}

func TestLoadInvalidTokenExpiry(t *testing.T) {
	t.Setenv("TOKEN_EXPIRY_MINUTES", "not-a-number")
	if cfg := Load(); cfg.TokenExpiryMinutes != 60 {
		t.Errorf("TokenExpiryMinutes = %d, want default 60", cfg.TokenExpiryMinutes)
	}
}

func TestLoadVPNConfigDefaults(t *testing.T) {
	cfg, err := LoadVPNConfig("")
	if err != nil {
		t.Fatalf("LoadVPNConfig: %v", err)
	}
	if cfg.ProjectName != "cross-partition-inference" {
		t.Errorf("ProjectName = %s", cfg.ProjectName)
	}
	if len(cfg.GovCloudStacks) != 5 || len(cfg.CommercialStacks) != 4 {
		t.Errorf("stack defaults = %d/%d, want 5/4", len(cfg.GovCloudStacks), len(cfg.CommercialStacks))
	}
	if cfg.GovCloudStacks[0] != "cross-partition-inference-govcloud-vpc-dev" {
		t.Errorf("first govcloud stack = %s", cfg.GovCloudStacks[0])
	}
}

func TestLoadVPNConfigFile(t *testing.T) {
	t.Setenv("DR_ENV", "prod")
	path := filepath.Join(t.TempDir(), "stacks.yaml")
	content := "project_name: demo\nenvironment: ${DR_ENV}\ngovcloud_stacks:\n  - demo-stack\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadVPNConfig(path)
	if err != nil {
		t.Fatalf("LoadVPNConfig: %v", err)
	}
	if cfg.Environment != "prod" {
		t.Errorf("env expansion failed, Environment = %s", cfg.Environment)
	}
	if len(cfg.GovCloudStacks) != 1 || cfg.GovCloudStacks[0] != "demo-stack" {
		t.Errorf("GovCloudStacks = %v", cfg.GovCloudStacks)
	}
	// Commercial stacks keep defaults, derived from overridden name/env.
	if cfg.CommercialStacks[0] != "demo-commercial-vpc-prod" {
		t.Errorf("CommercialStacks[0] = %s", cfg.CommercialStacks[0])
	}
}
