package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "pdf", "application/pdf", export.WritePDF)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

// serveReport renders the report into memory first so a rendering failure
// can still be answered with a JSON error.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, ext, contentType string,
	render func(io.Writer, export.Report) error) {
	p := newQueryParser(r)
	f := storage.TransactionFilter{
		Type:       p.txType(""),
		CategoryID: p.id("categoryId"),
		StartDate:  p.date("startDate"),
		EndDate:    p.date("endDate"),
	}
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := s.svc.Reports.Build(r.Context(), userID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, rep); err != nil {
		writeError(w, r, fmt.Errorf("render %s report: %w", ext, err))
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Report exported",
		applog.FieldOperation, applog.OpRender,
		"format", ext,
		"transactions", len(rep.Transactions),
		"bytes", buf.Len())

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rep.Filename(ext)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
