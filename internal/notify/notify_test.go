package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
)

type fakeEmailer struct {
	to      []string
	subject string
	text    string
	html    string
	err     error
}

func (f *fakeEmailer) SendEmail(ctx context.Context, from string, to []string, subject, text, html string) (string, error) {
	f.to, f.subject, f.text, f.html = to, subject, text, html
	return "msg-1", f.err
}

type fakePublisher struct {
	topic   string
	message string
	err     error
}

func (f *fakePublisher) PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error) {
	f.topic, f.message = topicARN, message
	return "sns-1", f.err
}

func summary() Summary {
	return Summary{
		BatchID:   "b1",
		FileName:  "turma_2024.csv",
		ModelName: "Logistic Regression",
		Total:     4,
		Yes:       3,
		No:        1,
		YesShare:  0.75,
		NoShare:   0.25,
		Missing:   []string{"ieg", "ida"},
	}
}

func TestBatchNotifier_BothChannels(t *testing.T) {
	email := &fakeEmailer{}
	pub := &fakePublisher{}
	n := NewBatchNotifier(Config{
		EmailEnabled: true, FromEmail: "no-reply@x.org", Recipients: []string{"coord@x.org"},
		SNSEnabled: true, TopicARN: "arn:pv",
	}, email, pub, logger.NewTestLogger(t))

	require.NoError(t, n.NotifyBatch(context.Background(), summary()))

	assert.Equal(t, []string{"coord@x.org"}, email.to)
	assert.Equal(t, "Predição em lote concluída: 4 alunos", email.subject)
	assert.Contains(t, email.text, "Atingirão PV (predito): 3 (75.0%)")
	assert.Contains(t, email.text, "Colunas ausentes (imputadas): ieg, ida")
	assert.Contains(t, email.html, "turma_2024.csv")

	assert.Equal(t, "arn:pv", pub.topic)
	assert.Equal(t, email.text, pub.message)
}

func TestBatchNotifier_DisabledChannels(t *testing.T) {
	email := &fakeEmailer{}
	pub := &fakePublisher{}
	n := NewBatchNotifier(Config{}, email, pub, logger.NewNoOpLogger())

	require.NoError(t, n.NotifyBatch(context.Background(), summary()))
	assert.Nil(t, email.to)
	assert.Empty(t, pub.topic)
}

func TestBatchNotifier_ReportsAllFailures(t *testing.T) {
	email := &fakeEmailer{err: errors.New("ses throttled")}
	pub := &fakePublisher{err: errors.New("topic not found")}
	n := NewBatchNotifier(Config{
		EmailEnabled: true, Recipients: []string{"coord@x.org"},
		SNSEnabled: true, TopicARN: "arn:pv",
	}, email, pub, logger.NewNoOpLogger())

	err := n.NotifyBatch(context.Background(), summary())
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeNotificationSendFailed))
	assert.Contains(t, err.Error(), "ses throttled")
	assert.Contains(t, err.Error(), "topic not found")
}
