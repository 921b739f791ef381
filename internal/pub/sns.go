// Package pub delivers live-game alerts to an SNS topic.
package pub

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	SNSEndpointKey = "SNS_ENDPOINT"
	ContentTypeKey = "content-type"
	EventTypeKey   = "event-type"
	LiveGameEvent  = "game-live"
)

// api is the part of *sns.Client the publisher needs.
type api interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher implements ports.Publisher.
type SNSPublisher struct{ cli api }

func NewSNS(c *sns.Client) *SNSPublisher { return &SNSPublisher{cli: c} }

// NewSNSFromEnv loads the default AWS config. SNS_ENDPOINT points the client
// at a local mock with static test credentials.
func NewSNSFromEnv(ctx context.Context) (*SNSPublisher, error) {
	var snsEndpoint *string
	if se := os.Getenv(SNSEndpointKey); se != "" {
		snsEndpoint = aws.String(se)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if snsEndpoint != nil {
			o.BaseEndpoint = snsEndpoint
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	})
	return NewSNS(cli), nil
}

func (s *SNSPublisher) PublishRaw(ctx context.Context, arn string, payload []byte) error {
	_, err := s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn: &arn,
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			ContentTypeKey: {DataType: aws.String("String"), StringValue: aws.String("application/json")},
			EventTypeKey:   {DataType: aws.String("String"), StringValue: aws.String(LiveGameEvent)},
		},
	})
	return err
}
