// Package notify announces finished batch predictions to the pedagogical
// coordinators by email (SES) and to an SNS topic.
package notify

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/models"
)

// Summary describes one batch run.
type Summary struct {
	BatchID   string
	FileName  string
	ModelName string
	Total     int
	Yes       int
	No        int
	YesShare  float64
	NoShare   float64
	Missing   []string
	CreatedAt time.Time
}

func (s Summary) YesPercent() string { return models.FormatPercent(s.YesShare) }
func (s Summary) NoPercent() string  { return models.FormatPercent(s.NoShare) }

// Notifier is told about every completed batch.
type Notifier interface {
	NotifyBatch(ctx context.Context, s Summary) error
}

// Emailer sends one email to many recipients.
type Emailer interface {
	SendEmail(ctx context.Context, from string, to []string, subject, text, html string) (string, error)
}

// Publisher publishes to an SNS topic.
type Publisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error)
}

// Config selects the enabled channels.
type Config struct {
	EmailEnabled bool
	FromEmail    string
	Recipients   []string
	SNSEnabled   bool
	TopicARN     string
}

// BatchNotifier fans a summary out to the enabled channels.
type BatchNotifier struct {
	config    Config
	emailer   Emailer
	publisher Publisher
	logger    logger.Logger
}

func NewBatchNotifier(cfg Config, emailer Emailer, publisher Publisher, log logger.Logger) *BatchNotifier {
	return &BatchNotifier{
		config:    cfg,
		emailer:   emailer,
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// NotifyBatch tries every enabled channel and reports all failures together.
func (n *BatchNotifier) NotifyBatch(ctx context.Context, s Summary) error {
	subject := fmt.Sprintf("Predição em lote concluída: %d alunos", s.Total)
	text, err := render(textTemplate, s)
	if err != nil {
		return errors.NewNotificationSendFailedError("render", err)
	}

	var errs []error

	if n.config.EmailEnabled && n.emailer != nil && len(n.config.Recipients) > 0 {
		html, err := renderHTML(s)
		if err != nil {
			return errors.NewNotificationSendFailedError("render", err)
		}
		id, err := n.emailer.SendEmail(ctx, n.config.FromEmail, n.config.Recipients, subject, text, html)
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			n.logger.Info("Batch summary emailed", map[string]interface{}{
				"batchId":    s.BatchID,
				"messageId":  id,
				"recipients": len(n.config.Recipients),
			})
		}
	}

	if n.config.SNSEnabled && n.publisher != nil && n.config.TopicARN != "" {
		id, err := n.publisher.PublishToTopic(ctx, n.config.TopicARN, subject, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("sns: %w", err))
		} else {
			n.logger.Info("Batch summary published", map[string]interface{}{
				"batchId":   s.BatchID,
				"messageId": id,
			})
		}
	}

	if len(errs) > 0 {
		return errors.NewNotificationSendFailedError("batch-summary", stderrors.Join(errs...))
	}
	return nil
}

// Nop discards summaries.
type Nop struct{}

func (Nop) NotifyBatch(context.Context, Summary) error { return nil }

var textTemplate = template.Must(template.New("text").Parse(
	`Predição de Ponto de Virada concluída.

Arquivo: {{.FileName}}
Lote: {{.BatchID}}
Modelo: {{.ModelName}}

Total de alunos: {{.Total}}
Atingirão PV (predito): {{.Yes}} ({{.YesPercent}})
Precisam de atenção: {{.No}} ({{.NoPercent}})
{{- if .Missing}}

Colunas ausentes (imputadas): {{range $i, $c := .Missing}}{{if $i}}, {{end}}{{$c}}{{end}}
{{- end}}
`))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<h2>Predição de Ponto de Virada concluída</h2>
<p>Arquivo: <b>{{.FileName}}</b> &middot; Modelo: {{.ModelName}}</p>
<table>
<tr><td>Total de alunos</td><td>{{.Total}}</td></tr>
<tr><td>Atingirão PV (predito)</td><td>{{.Yes}} ({{.YesPercent}})</td></tr>
<tr><td>Precisam de atenção</td><td>{{.No}} ({{.NoPercent}})</td></tr>
</table>
{{if .Missing}}<p>Colunas ausentes (imputadas): {{range $i, $c := .Missing}}{{if $i}}, {{end}}{{$c}}{{end}}</p>{{end}}
`))

func render(t *template.Template, s Summary) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(s Summary) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
