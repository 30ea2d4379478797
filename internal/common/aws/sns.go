// internal/common/aws/sns.go
package aws

import (
	"context"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender publishes transactional text messages.
type SMSSender struct {
	client   SNSAPI
	senderID string
}

func NewSMSSender(cfg sdkaws.Config, senderID string) *SMSSender {
	return &SMSSender{client: sns.NewFromConfig(cfg), senderID: senderID}
}

func NewSMSSenderWithClient(client SNSAPI, senderID string) *SMSSender {
	return &SMSSender{client: client, senderID: senderID}
}

// Send publishes message to a Thai mobile number. Local numbers starting
// with 0 are rewritten to +66.
func (s *SMSSender) Send(ctx context.Context, phone, message string) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: sdkaws.String("String"), StringValue: sdkaws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(s.senderID),
		}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       sdkaws.String(E164(phone)),
		Message:           sdkaws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", err
	}
	return sdkaws.ToString(out.MessageId), nil
}

// E164 normalises a Thai phone number.
func E164(phone string) string {
	p := strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if strings.HasPrefix(p, "0") {
		return "+66" + p[1:]
	}
	return p
}
