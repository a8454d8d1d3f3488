package dynamo

import (
	"context"
	"fmt"
	"net/url"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
)

// staticEndpointResolver sends every DynamoDB call to one URL, typically
// amazon/dynamodb-local during development
type staticEndpointResolver struct {
	uri url.URL
}

func newStaticEndpointResolver(raw string) (*staticEndpointResolver, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dynamodb endpoint %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("dynamodb endpoint %q must be an absolute URL", raw)
	}
	return &staticEndpointResolver{uri: *u}, nil
}

func (r *staticEndpointResolver) ResolveEndpoint(_ context.Context, _ dynamodb.EndpointParameters) (
	smithyendpoints.Endpoint,
	error,
) {
	return smithyendpoints.Endpoint{URI: r.uri}, nil
}

// NewDynamoDBClient builds a client from the default AWS chain. When an
// endpoint is configured the client targets it with dummy static
// credentials instead.
func NewDynamoDBClient(ctx context.Context, cfg config.Config) (*dynamodb.Client, error) {
	cfgOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.DynamoDB.Region),
	}

	local := cfg.DynamoDB.Endpoint != ""
	if local {
		cfgOptions = append(cfgOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("DUMMY", "DUMMY", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	var clientOptions []func(*dynamodb.Options)
	if local {
		resolver, err := newStaticEndpointResolver(cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		clientOptions = append(clientOptions, dynamodb.WithEndpointResolverV2(resolver))
	}

	return dynamodb.NewFromConfig(awsCfg, clientOptions...), nil
}
