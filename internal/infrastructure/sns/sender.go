package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-docshare/internal/config"
)

// publisher is the subset of the SNS client used here.
type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// OTPPublisher hands verification codes to an SNS topic. A subscriber
// (mail relay, Lambda) owns the final delivery.
type OTPPublisher struct {
	client   publisher
	topicARN string
}

// otpMessage is the JSON body published to the topic.
type otpMessage struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Code  string `json:"code"`
}

func NewOTPPublisher(cfg *config.Config) (*OTPPublisher, error) {
	if cfg.SNSTopicARN == "" {
		return nil, fmt.Errorf("SNS_TOPIC_ARN is required for the sns notifier")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(cfg.AWSEndpointURL) })
	}
	return &OTPPublisher{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSTopicARN}, nil
}

func (p *OTPPublisher) SendOTP(ctx context.Context, email, code string) error {
	body, err := json.Marshal(otpMessage{Type: "otp", Email: email, Code: code})
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String("otp")},
		},
	})
	return err
}
