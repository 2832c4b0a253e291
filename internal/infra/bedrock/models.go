package bedrock

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"

	"github.com/freshie/bedrock-cross-partition-inferencing/internal/core/domain"
)

// CatalogAPI is the bedrock control-plane surface used for model discovery.
type CatalogAPI interface {
	ListFoundationModels(ctx context.Context, params *awsbedrock.ListFoundationModelsInput, optFns ...func(*awsbedrock.Options)) (*awsbedrock.ListFoundationModelsOutput, error)
}

// ModelInfo is the catalog entry returned to GET callers.
type ModelInfo struct {
	ModelID      string   `json:"modelId"`
	ModelName    string   `json:"modelName"`
	ProviderName string   `json:"providerName"`
	InputTypes   []string `json:"inputModalities,omitempty"`
	OutputTypes  []string `json:"outputModalities,omitempty"`
	Streaming    bool     `json:"responseStreamingSupported"`
}

// NewCatalogClient builds a bedrock control-plane client in the commercial
// partition from the fetched key pair.
func NewCatalogClient(creds domain.Credentials, timeout time.Duration) CatalogAPI {
	region := creds.Region
	if region == "" {
		region = DefaultRegion
	}
	cfg := aws.Config{
		Region: region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(creds.AWSAccessKeyID, creds.AWSSecretAccessKey, ""),
		),
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return awsbedrock.NewFromConfig(cfg)
}

// ListModels returns the active foundation models visible in the commercial
// partition.
func ListModels(ctx context.Context, api CatalogAPI) ([]ModelInfo, error) {
	out, err := api.ListFoundationModels(ctx, &awsbedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing commercial Bedrock models: %w", err)
	}

	models := make([]ModelInfo, 0, len(out.ModelSummaries))
	for _, s := range out.ModelSummaries {
		if s.ModelLifecycle != nil && s.ModelLifecycle.Status != types.FoundationModelLifecycleStatusActive {
			continue
		}
		info := ModelInfo{
			ModelID:      aws.ToString(s.ModelId),
			ModelName:    aws.ToString(s.ModelName),
			ProviderName: aws.ToString(s.ProviderName),
			Streaming:    aws.ToBool(s.ResponseStreamingSupported),
		}
		for _, m := range s.InputModalities {
			info.InputTypes = append(info.InputTypes, string(m))
		}
		for _, m := range s.OutputModalities {
			info.OutputTypes = append(info.OutputTypes, string(m))
		}
		models = append(models, info)
	}
	return models, nil
}
