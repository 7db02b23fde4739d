package batch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/history"
	"passos-predictor/internal/inference/inferencetest"
	"passos-predictor/internal/ingest"
	"passos-predictor/internal/notify"
)

type recordingStore struct {
	history.NopStore
	saved []history.Entry
	err   error
}

func (s *recordingStore) Save(ctx context.Context, entries []history.Entry) error {
	s.saved = append(s.saved, entries...)
	return s.err
}

type recordingIndexer struct {
	batchID string
	docs    []map[string]interface{}
	err     error
}

func (i *recordingIndexer) IndexBatch(ctx context.Context, batchID string, docs []map[string]interface{}) error {
	i.batchID, i.docs = batchID, docs
	return i.err
}

type recordingNotifier struct {
	summaries []notify.Summary
	err       error
}

func (n *recordingNotifier) NotifyBatch(ctx context.Context, s notify.Summary) error {
	n.summaries = append(n.summaries, s)
	return n.err
}

func newService(t *testing.T, opts ...Option) *Service {
	return NewService(inferencetest.Loader(inferencetest.LogisticArtifact()), logger.NewTestLogger(t), opts...)
}

func TestService_RunTemplate(t *testing.T) {
	store := &recordingStore{}
	idx := &recordingIndexer{}
	notifier := &recordingNotifier{}
	svc := newService(t, WithStore(store), WithIndexer(idx), WithNotifier(notifier))

	tmpl := Template()
	// score RA-002 first in the input to check the ordering
	tmpl.Rows[0], tmpl.Rows[1] = tmpl.Rows[1], tmpl.Rows[0]

	res, err := svc.Run(context.Background(), "template_predicao.csv", tmpl)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Empty(t, res.MissingColumns)
	assert.Equal(t, "RA-001", res.Rows[0].Cells[0])
	assert.Equal(t, 0.5987, res.Rows[0].Probability)
	assert.Equal(t, "Sim", res.Rows[0].LabelText)
	assert.Equal(t, "RA-002", res.Rows[1].Cells[0])
	assert.Equal(t, 0.1978, res.Rows[1].Probability)
	assert.Equal(t, "Não", res.Rows[1].LabelText)

	assert.Equal(t, KPIs{Total: 2, Yes: 1, No: 1, YesShare: 0.5, NoShare: 0.5}, res.KPIs)
	assert.Equal(t, "Logistic Regression", res.ModelName)

	require.Len(t, store.saved, 2)
	assert.Equal(t, res.ID, store.saved[0].BatchID)
	assert.Equal(t, history.SourceBatch, store.saved[0].Source)
	assert.NotContains(t, store.saved[0].Record, "ra")
	assert.Equal(t, "7.0", store.saved[0].Record["ipv"])

	assert.Equal(t, res.ID, idx.batchID)
	require.Len(t, idx.docs, 2)
	assert.Equal(t, "RA-001", idx.docs[0]["ra"])
	assert.Equal(t, 0.5987, idx.docs[0][ColProbability])

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, 2, notifier.summaries[0].Total)
	assert.Equal(t, "template_predicao.csv", notifier.summaries[0].FileName)
}

func TestService_RunMissingColumns(t *testing.T) {
	tbl := &ingest.Table{
		Columns: []string{"ra", "ipv"},
		Rows:    [][]string{{"A", "6"}, {"B", "8"}, {"C"}},
	}

	res, err := newService(t).Run(context.Background(), "parcial.csv", tbl)
	require.NoError(t, err)

	assert.Len(t, res.MissingColumns, 13)
	assert.Contains(t, res.MissingColumns, "ieg")
	assert.NotContains(t, res.MissingColumns, "ipv")

	got := []string{res.Rows[0].Cells[0], res.Rows[1].Cells[0], res.Rows[2].Cells[0]}
	assert.Equal(t, []string{"B", "C", "A"}, got)
	assert.Equal(t, 0.7685, res.Rows[0].Probability)
	assert.Equal(t, 0.5, res.Rows[1].Probability) // imputed ipv
	assert.Equal(t, "", res.Rows[1].Cells[1])
	assert.Equal(t, 0.2315, res.Rows[2].Probability)
}

func TestService_RunNoExpectedColumnUsesWholeTable(t *testing.T) {
	tbl := &ingest.Table{
		Columns: []string{"nome", "turma"},
		Rows:    [][]string{{"Ana", "A"}, {"Bia", "B"}},
	}

	res, err := newService(t).Run(context.Background(), "outro.csv", tbl)
	require.NoError(t, err)

	assert.Len(t, res.MissingColumns, 14)
	// every feature imputed: probability exactly 0.5, which is not above the threshold
	for _, r := range res.Rows {
		assert.Equal(t, 0.5, r.Probability)
		assert.Equal(t, 0, r.Label)
	}
	// ties keep input order
	assert.Equal(t, "Ana", res.Rows[0].Cells[0])
	assert.Equal(t, KPIs{Total: 2, No: 2, NoShare: 1}, res.KPIs)
}

func TestService_RunEmptyTable(t *testing.T) {
	res, err := newService(t).Run(context.Background(), "vazio.csv", &ingest.Table{Columns: []string{"ipv"}})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, KPIs{}, res.KPIs)
}

func TestService_RunModelNotLoaded(t *testing.T) {
	svc := NewService(inferencetest.EmptyLoader(), logger.NewNoOpLogger())
	_, err := svc.Run(context.Background(), "x.csv", Template())
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeModelNotLoaded))
}

func TestService_RunBadCell(t *testing.T) {
	tbl := &ingest.Table{Columns: []string{"ipv"}, Rows: [][]string{{"7"}, {"alto"}}}
	_, err := newService(t).Run(context.Background(), "ruim.csv", tbl)
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeFileParseFailed))
	assert.Contains(t, err.Error(), "row 2, column ipv")
}

func TestService_RunNonFiniteCell(t *testing.T) {
	for _, cell := range []string{"inf", "-Infinity", "+Inf"} {
		tbl := &ingest.Table{Columns: []string{"ipv", "ieg"}, Rows: [][]string{{"7", "6"}, {"8", cell}}}
		_, err := newService(t).Run(context.Background(), "infinito.csv", tbl)
		require.Error(t, err, cell)
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeFileParseFailed), cell)
		assert.Contains(t, err.Error(), "row 2, column ieg", cell)
	}
}

func TestService_SideEffectFailuresDoNotFailBatch(t *testing.T) {
	svc := newService(t,
		WithStore(&recordingStore{err: errors.New("db down")}),
		WithIndexer(&recordingIndexer{err: errors.New("es down")}),
		WithNotifier(&recordingNotifier{err: errors.New("ses down")}),
	)
	res, err := svc.Run(context.Background(), "t.csv", Template())
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestWriteCSV(t *testing.T) {
	res, err := newService(t).Run(context.Background(), "t.csv", Template())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ra,fase,inde,"))
	assert.True(t, strings.HasSuffix(lines[0], ",instituicao_de_ensino,prob_ponto_de_virada,predicao_pv"))
	assert.True(t, strings.HasPrefix(lines[1], "RA-001,"))
	assert.True(t, strings.HasSuffix(lines[1], ",Escola Pública,0.5987,Sim"))
	assert.True(t, strings.HasSuffix(lines[2], ",Rede Decisão,0.1978,Não"))
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	tbl, err := ingest.ParseCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 15, len(tbl.Columns))
	assert.Equal(t, "ra", tbl.Columns[0])
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Ametista", tbl.Cell(0, tbl.Index("pedra")))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12346))
	assert.Equal(t, 1.0, Round4(0.99999))
	assert.Equal(t, "0.9", FormatProbability(Round4(0.9)))
}
