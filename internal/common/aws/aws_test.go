package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type mockSNS struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSESClient_SendEmail(t *testing.T) {
	api := &mockSES{}
	id, err := NewSESClientWith(api).SendEmail(context.Background(),
		"no-reply@passosmagicos.org.br", []string{"a@x.org", "b@x.org"}, "Resumo", "texto", "<p>html</p>")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Resumo", aws.ToString(api.input.Message.Subject.Data))
	assert.Equal(t, "no-reply@passosmagicos.org.br", aws.ToString(api.input.Source))

	api.err = errors.New("throttled")
	_, err = NewSESClientWith(api).SendEmail(context.Background(), "f", []string{"t"}, "s", "b", "b")
	assert.EqualError(t, err, "throttled")
}

func TestSNSClient_PublishToTopic(t *testing.T) {
	api := &mockSNS{}
	id, err := NewSNSClientWith(api).PublishToTopic(context.Background(), "arn:aws:sns:sa-east-1:1:pv", "Resumo", "msg")
	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	assert.Equal(t, "arn:aws:sns:sa-east-1:1:pv", aws.ToString(api.input.TopicArn))
}
