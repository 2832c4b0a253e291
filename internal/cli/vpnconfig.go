package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/config"
)

var (
	projectName       string
	environment       string
	outputDir         string
	govcloudProfile   string
	commercialProfile string
	stacksFile        string
	validateOnly      bool
)

var vpnConfigCmd = &cobra.Command{
	Use:   "vpn-config",
	Short: "Extract and validate the deployed VPN configuration",
	Long: `Reads CloudFormation stack outputs from both partitions plus the VPN
tunnel telemetry, writes vpn-config-data.json, config-vpn.sh and
vpn-config-validation.json, and exits non-zero when the configuration is
not usable.`,
	Run: runVPNConfig,
}

func init() {
	vpnConfigCmd.Flags().StringVar(&projectName, "project-name", "", "project name used in stack names")
	vpnConfigCmd.Flags().StringVar(&environment, "environment", "", "deployment environment (dev, staging, prod)")
	vpnConfigCmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory to write configuration files into")
	vpnConfigCmd.Flags().StringVar(&govcloudProfile, "govcloud-profile", "", "AWS profile for the GovCloud partition")
	vpnConfigCmd.Flags().StringVar(&commercialProfile, "commercial-profile", "", "AWS profile for the Commercial partition")
	vpnConfigCmd.Flags().StringVar(&stacksFile, "stacks-file", "", "optional YAML file overriding the stack lists")
	vpnConfigCmd.Flags().BoolVar(&validateOnly, "validate-only", false, "validate existing vpn-config-data.json without extracting")
	rootCmd.AddCommand(vpnConfigCmd)
}

func runVPNConfig(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if validateOnly {
		if err := validateExisting(outputDir); err != nil {
			slog.Error("Validation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration valid", "dir", outputDir)
		return
	}

	vcfg, err := config.LoadVPNConfig(stacksFile)
	if err != nil {
		slog.Error("Failed to load stacks file", "error", err, "path", stacksFile)
		os.Exit(1)
	}
	applyFlagOverrides(vcfg)

	data, err := extract(ctx, vcfg)
	if err != nil {
		slog.Error("Extraction failed", "error", err)
		os.Exit(1)
	}
	validation := validate(data, time.Now())

	if err := writeArtifacts(outputDir, data, validation); err != nil {
		slog.Error("Failed to write configuration files", "error", err)
		os.Exit(1)
	}

	for _, w := range validation.Warnings {
		slog.Warn(w)
	}
	if !validation.Valid {
		for _, e := range validation.Errors {
			slog.Error(e)
		}
		os.Exit(1)
	}
	slog.Info("VPN configuration extracted",
		"dir", outputDir,
		"govcloud_stacks", len(data.GovCloud.StackOutputs),
		"commercial_stacks", len(data.Commercial.StackOutputs),
		"tunnels", len(data.Tunnels))
}

func applyFlagOverrides(vcfg *config.VPNConfigFile) {
	if projectName != "" {
		vcfg.ProjectName = projectName
	}
	if environment != "" {
		vcfg.Environment = environment
	}
	if govcloudProfile != "" {
		vcfg.GovCloudProfile = govcloudProfile
	}
	if commercialProfile != "" {
		vcfg.CommercialProfile = commercialProfile
	}
	// Default stack lists are derived from project name and environment,
	// so flag overrides invalidate them. Lists from an explicit stacks
	// file are kept as-is.
	if (projectName != "" || environment != "") && stacksFile == "" {
		vcfg.GovCloudStacks = nil
		vcfg.CommercialStacks = nil
		vcfg.ApplyDefaults()
	}
}

func extract(ctx context.Context, vcfg *config.VPNConfigFile) (*ConfigData, error) {
	gov, err := partitionClients(ctx, vcfg.GovCloudProfile, vcfg.GovCloudRegion)
	if err != nil {
		return nil, fmt.Errorf("loading govcloud profile %q: %w", vcfg.GovCloudProfile, err)
	}
	com, err := partitionClients(ctx, vcfg.CommercialProfile, vcfg.CommercialRegion)
	if err != nil {
		return nil, fmt.Errorf("loading commercial profile %q: %w", vcfg.CommercialProfile, err)
	}

	data := &ConfigData{
		ProjectName: vcfg.ProjectName,
		Environment: vcfg.Environment,
		ExtractedAt: time.Now().UTC().Format(time.RFC3339),
		GovCloud:    PartitionConfig{Region: vcfg.GovCloudRegion, Profile: vcfg.GovCloudProfile},
		Commercial:  PartitionConfig{Region: vcfg.CommercialRegion, Profile: vcfg.CommercialProfile},
	}

	data.GovCloud.StackOutputs, data.GovCloud.MissingStacks = collectOutputs(ctx, gov.cfn, vcfg.GovCloudStacks)
	data.Commercial.StackOutputs, data.Commercial.MissingStacks = collectOutputs(ctx, com.cfn, vcfg.CommercialStacks)

	// Tunnel telemetry lives on the GovCloud side of the connection.
	tunnels, err := collectTunnels(ctx, gov.ec2)
	if err != nil {
		slog.Warn("VPN tunnel telemetry unavailable", "error", err)
	} else {
		data.Tunnels = tunnels
	}
	return data, nil
}

type clients struct {
	cfn CFNAPI
	ec2 EC2API
}

func partitionClients(ctx context.Context, profile, region string) (*clients, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithSharedConfigProfile(profile),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}
	return &clients{
		cfn: cloudformation.NewFromConfig(awscfg),
		ec2: ec2.NewFromConfig(awscfg),
	}, nil
}

func writeArtifacts(dir string, data *ConfigData, validation Validation) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "vpn-config-data.json"), dataJSON, 0o644); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, "config-vpn.sh"), []byte(renderShellScript(data)), 0o755); err != nil {
		return err
	}

	validationJSON, err := json.MarshalIndent(validation, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "vpn-config-validation.json"), validationJSON, 0o644)
}

// validateExisting re-validates a previously extracted configuration.
func validateExisting(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "vpn-config-data.json"))
	if err != nil {
		return fmt.Errorf("reading vpn-config-data.json: %w", err)
	}
	var data ConfigData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("vpn-config-data.json is not valid JSON: %w", err)
	}

	validation := validate(&data, time.Now())
	validationJSON, err := json.MarshalIndent(validation, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "vpn-config-validation.json"), validationJSON, 0o644); err != nil {
		return err
	}
	if !validation.Valid {
		return fmt.Errorf("configuration invalid: %v", validation.Errors)
	}
	return nil
}
