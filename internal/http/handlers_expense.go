package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"despesas/internal/core"
	"despesas/internal/log"
	"despesas/internal/refresh"
	"despesas/internal/remote"
	"despesas/internal/report"
)

const maxUploadBytes = 10 << 20

// actionFailure maps a failed user action to its response.
func actionFailure(ctx context.Context, op string, err error) *JSONResponseBuilder {
	logger := log.FromContext(ctx)

	var statusErr *remote.StatusError
	switch {
	case errors.Is(err, refresh.ErrInFlight):
		return ConflictError("operação já em andamento")
	case errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate):
		return UnprocessableEntityError(err.Error())
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return NotFoundError("despesa não encontrada")
	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity):
		msg := statusErr.Message
		if msg == "" {
			msg = "requisição rejeitada pelo serviço de despesas"
		}
		return ErrorResponse(statusErr.StatusCode, msg)
	}

	log.NewStructuredLogger(logger).LogError(ctx, "Action failed", err, log.ComponentHTTP, op,
		log.NewFields().WithErrorType(log.ErrorTypeNetwork))
	return BadGatewayError("falha ao comunicar com o serviço de despesas")
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := NewRequestBodyParser(r).NewExpense()
	if err != nil {
		BadRequestError("formato de requisição inválido").Write(w)
		return
	}

	created, err := s.actions.Create(ctx, in)
	if err != nil {
		actionFailure(ctx, log.OpCreate, err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogExpenseCreated(ctx, created.ID, created.Description, created.Amount.Cents, created.Category)

	NewJSONResponse().
		Status(http.StatusCreated).
		Payload(s.viewModel(ParseCriteria(r.URL.Query()))).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		BadRequestError("id ausente").Write(w)
		return
	}

	if err := s.actions.Delete(ctx, id); err != nil {
		actionFailure(ctx, log.OpDelete, err).Write(w)
		return
	}

	NewJSONResponse().Payload(s.viewModel(ParseCriteria(r.URL.Query()))).Write(w)
}

type importResponse struct {
	Imported  int `json:"imported"`
	Dashboard any `json:"dashboard"`
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BadRequestError("envie um arquivo CSV no campo file").Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("envie um arquivo CSV no campo file").Write(w)
		return
	}
	defer file.Close()

	n, err := s.actions.Import(ctx, header.Filename, file)
	if err != nil {
		actionFailure(ctx, log.OpImport, err).Write(w)
		return
	}

	NewJSONResponse().Payload(importResponse{
		Imported:  n,
		Dashboard: s.viewModel(ParseCriteria(r.URL.Query())),
	}).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.actions.Export(r.Context(), &buf); err != nil {
		actionFailure(r.Context(), log.OpExport, err).Write(w)
		return
	}
	WriteAttachment(w, "text/csv; charset=utf-8", report.CSVFilename, &buf)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.actions.Report(r.Context(), &buf); err != nil {
		actionFailure(r.Context(), log.OpReport, err).Write(w)
		return
	}
	WriteAttachment(w, "application/pdf", report.PDFFilename, &buf)
}
