package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"despesas/internal/core"
	apphttp "despesas/internal/http"
	"despesas/internal/log"
	"despesas/internal/report"
	"despesas/internal/storage"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

func (s *Server) internalError(r *http.Request, op string, err error) *apphttp.JSONResponseBuilder {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, log.ComponentAPI, op,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
	return apphttp.InternalServerError("erro interno")
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		s.internalError(r, log.OpList, err).Write(w)
		return
	}
	if records == nil {
		records = []core.Expense{}
	}
	apphttp.NewJSONResponse().Payload(records).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in core.NewExpense
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(&in); err != nil {
		apphttp.BadRequestError("corpo da requisição deve ser JSON").Write(w)
		return
	}

	created, err := s.svc.CreateExpense(ctx, in)
	switch {
	case errors.Is(err, core.ErrEmptyDescription), errors.Is(err, core.ErrDescriptionTooLong):
		log.FromContext(ctx).WarnContext(ctx, "Expense rejected",
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, err)
		apphttp.UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		s.internalError(r, log.OpCreate, err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogExpenseCreated(ctx, created.ID, created.Description, created.Amount.Cents, created.Category)

	apphttp.NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+created.ID).
		Payload(created).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.svc.DeleteExpense(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
		apphttp.NotFoundError("despesa não encontrada").Write(w)
		return
	case err != nil:
		s.internalError(r, log.OpDelete, err).Write(w)
		return
	}
	apphttp.NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	fc, err := s.svc.Predict(r.Context())
	if err != nil {
		s.internalError(r, log.OpPredict, err).Write(w)
		return
	}
	if fc == nil {
		apphttp.NewJSONResponse().Payload(struct{}{}).Write(w)
		return
	}
	if fc.Months == nil {
		fc.Months = []core.MonthBucket{}
	}
	apphttp.NewJSONResponse().Payload(fc).Write(w)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		apphttp.BadRequestError("nenhum arquivo enviado").Write(w)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		apphttp.BadRequestError("nenhum arquivo enviado").Write(w)
		return
	}
	defer file.Close()

	n, err := s.svc.ImportCSV(r.Context(), file)
	switch {
	case errors.Is(err, report.ErrEmptyCSV):
		apphttp.BadRequestError(err.Error()).Write(w)
		return
	case err != nil:
		s.internalError(r, log.OpImport, err).Write(w)
		return
	}
	apphttp.NewJSONResponse().Payload(map[string]int{"imported": n}).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportCSV(r.Context(), &buf); err != nil {
		s.internalError(r, log.OpExport, err).Write(w)
		return
	}
	apphttp.WriteAttachment(w, "text/csv; charset=utf-8", report.CSVFilename, &buf)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Report(r.Context(), &buf); err != nil {
		s.internalError(r, log.OpReport, err).Write(w)
		return
	}
	apphttp.WriteAttachment(w, "application/pdf", report.PDFFilename, &buf)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apphttp.NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			apphttp.ServiceUnavailableError("storage unavailable").Write(w)
			return
		}
	}
	apphttp.NewJSONResponse().Payload(map[string]string{"status": "ready"}).Write(w)
}
