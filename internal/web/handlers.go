package web

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/history"
	"passos-predictor/internal/ingest"
	"passos-predictor/internal/models"
	"passos-predictor/internal/predictor"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxRecordBytes      = 64 << 10
)

func (s *Server) newPage(r *http.Request, title, active string) *page {
	snap := s.predictor.Loader().Load(r.Context())
	return &page{
		Title:    title,
		Active:   active,
		Sidebar:  newSidebar(snap),
		Form:     models.DefaultRecord(),
		Options:  options,
		Expected: expectedColumns(snap.Metadata.AllFeatures),
		Template: batch.Template(),
	}
}

func expectedColumns(features []string) []string {
	if len(features) == 0 {
		return models.FeatureColumns
	}
	return features
}

func (s *Server) render(w http.ResponseWriter, status int, name string, p *page) {
	var buf bytes.Buffer
	if err := s.views.render(&buf, name, p); err != nil {
		s.logger.Error("Failed to render page", map[string]interface{}{"page": name, "error": err})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows err on the page with the user-facing message and the
// status its code maps to.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, name string, p *page, err error) {
	stdErr := errors.AsStandardError(err)
	status := errors.HTTPStatus(stdErr.Code)
	s.logger.Warn("Dashboard request failed", map[string]interface{}{
		"path":      r.URL.Path,
		"status":    status,
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
	p.Error = errors.UserMessage(stdErr)
	s.render(w, status, name, p)
}

// ==========================
// Individual prediction
// ==========================

func (s *Server) individualPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageIndividual, s.newPage(r, "Predição Individual", "individual"))
}

func (s *Server) predictForm(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Predição Individual", "individual")

	rec, err := parseRecordForm(r)
	p.Form = rec
	if err != nil {
		s.renderError(w, r, pageIndividual, p, err)
		return
	}

	out, err := s.predictor.Predict(r.Context(), rec, history.SourceIndividual)
	if err != nil {
		s.renderError(w, r, pageIndividual, p, err)
		return
	}
	p.Outcome = out
	s.render(w, http.StatusOK, pageIndividual, p)
}

// parseRecordForm reads the individual form on top of the default record.
func parseRecordForm(r *http.Request) (models.StudentRecord, error) {
	rec := models.DefaultRecord()
	if err := r.ParseForm(); err != nil {
		return rec, errors.NewInvalidStudentRecordError(err.Error())
	}

	var problems []string
	number := func(field string, dst *float64) {
		v := strings.TrimSpace(r.PostForm.Get(field))
		if v == "" {
			return
		}
		f, err := models.ParseNumber(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", field, err))
			return
		}
		*dst = f
	}
	integer := func(field string, dst *int) {
		v := strings.TrimSpace(r.PostForm.Get(field))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %q is not an integer", field, v))
			return
		}
		*dst = n
	}
	text := func(field string, dst *string) {
		if v := strings.TrimSpace(r.PostForm.Get(field)); v != "" {
			*dst = v
		}
	}

	integer(models.ColFase, &rec.Fase)
	number(models.ColINDE, &rec.INDE)
	number(models.ColIAA, &rec.IAA)
	number(models.ColIEG, &rec.IEG)
	number(models.ColIPS, &rec.IPS)
	number(models.ColIDA, &rec.IDA)
	number(models.ColIPV, &rec.IPV)
	number(models.ColIAN, &rec.IAN)
	integer(models.ColDefas, &rec.Defas)
	integer(models.ColAnoIngresso, &rec.AnoIngresso)
	integer(models.ColAnoReferencia, &rec.AnoReferencia)
	text(models.ColGenero, &rec.Genero)
	text(models.ColPedra, &rec.Pedra)
	text(models.ColInstituicao, &rec.Instituicao)

	if len(problems) > 0 {
		return rec, errors.NewInvalidStudentRecordError(strings.Join(problems, "; "))
	}
	return rec, nil
}

// ==========================
// Batch prediction
// ==========================

func (s *Server) batchPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageBatch, s.newPage(r, "Predição em Lote", "batch"))
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Predição em Lote", "batch")

	name, table, err := s.readUpload(w, r)
	if err != nil {
		s.uploadFailed(err)
		s.renderError(w, r, pageBatch, p, err)
		return
	}

	up := s.uploads.Put(name, table)
	s.logger.Info("Upload parsed", map[string]interface{}{
		"uploadId": up.ID,
		"file":     name,
		"rows":     table.Len(),
		"columns":  len(table.Columns),
	})
	p.Upload = &up
	p.Preview = table.Preview(s.opts.PreviewRows)
	s.render(w, http.StatusOK, pageBatch, p)
}

func (s *Server) predictUpload(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Predição em Lote", "batch")

	up, err := s.uploads.Get(r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, pageBatch, p, err)
		return
	}
	p.Upload = &up
	p.Preview = up.Table.Preview(s.opts.PreviewRows)

	result, err := s.batch.Run(r.Context(), up.FileName, up.Table)
	if err != nil {
		s.renderError(w, r, pageBatch, p, err)
		return
	}
	if err := s.uploads.SetResult(up.ID, result); err != nil {
		s.renderError(w, r, pageBatch, p, err)
		return
	}

	p.Result = result
	if len(result.MissingColumns) > 0 {
		p.Warning = fmt.Sprintf("Colunas ausentes (serão imputadas): %s", strings.Join(result.MissingColumns, ", "))
	}
	s.render(w, http.StatusOK, pageBatch, p)
}

func (s *Server) downloadResult(w http.ResponseWriter, r *http.Request) {
	up, err := s.uploads.Get(r.PathValue("id"))
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	if up.Result == nil {
		s.errors.HandleHTTPError(w, r, errors.NewUploadNotFoundError(up.ID).
			WithMetadata("reason", "batch has not been predicted yet"))
		return
	}

	var buf bytes.Buffer
	if err := batch.WriteCSV(&buf, up.Result); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeCSV(w, batch.ResultFileName, buf.Bytes())
}

func (s *Server) downloadTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := batch.WriteTemplate(&buf); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeCSV(w, batch.TemplateFileName, buf.Bytes())
}

func writeCSV(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// readUpload reads the "file" form field within the configured size limit
// and parses it into a table.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, *ingest.Table, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, errors.NewUploadTooLargeError(s.opts.MaxUploadBytes)
		}
		return "", nil, errors.NewFileParseFailedError("upload", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.NewFileParseFailedError("upload", err)
	}
	defer file.Close()

	table, err := ingest.Parse(header.Filename, file)
	if err != nil {
		return header.Filename, nil, err
	}
	return header.Filename, table, nil
}

func (s *Server) uploadFailed(err error) {
	metrics.UploadFailures.WithLabelValues(string(errors.AsStandardError(err).Code)).Inc()
}

func (s *Server) aboutPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageAbout, s.newPage(r, "Sobre a Ferramenta", "about"))
}

// ==========================
// JSON API
// ==========================

func (s *Server) apiPredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err != nil {
		s.errors.HandleHTTPError(w, r, errors.NewInvalidStudentRecordError(err.Error()))
		return
	}
	rec, err := predictor.ParseRecord(body)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	out, err := s.predictor.Predict(r.Context(), rec, history.SourceAPI)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) apiBatch(w http.ResponseWriter, r *http.Request) {
	name, table, err := s.readUpload(w, r)
	if err != nil {
		s.uploadFailed(err)
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	result, err := s.batch.Run(r.Context(), name, table)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

type modelResponse struct {
	Loaded   bool                  `json:"loaded"`
	Path     string                `json:"path"`
	Metadata *models.ModelMetadata `json:"metadata,omitempty"`
	Features []string              `json:"features,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) apiModel(w http.ResponseWriter, r *http.Request) {
	snap := s.predictor.Loader().Load(r.Context())
	resp := modelResponse{Loaded: snap.Loaded(), Path: snap.Path}
	if !snap.Metadata.Empty() {
		meta := snap.Metadata
		resp.Metadata = &meta
	}
	if snap.Loaded() {
		resp.Features = snap.Model.Features()
	}
	if snap.LoadErr != nil {
		resp.Error = snap.LoadErr.Error()
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) apiHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.errors.HandleHTTPError(w, r, errors.NewHistoryStoreFailedError(err))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{"entries": entries, "limit": limit})
}
