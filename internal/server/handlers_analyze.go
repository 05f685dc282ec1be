package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/truthinlistings/dashboard/internal/export"
	"github.com/truthinlistings/dashboard/internal/listing"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/report"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

type analyzePage struct {
	State   listing.State
	Loading bool
	Report  *report.View
}

func newAnalyzePage(st listing.State) analyzePage {
	p := analyzePage{State: st, Loading: st.Phase == viewstate.Loading}
	if st.Phase == viewstate.Success && st.Outcome != nil {
		v := report.Render(st.Outcome.Result, st.Outcome.Listing)
		p.Report = &v
	}
	return p
}

func (s *Server) renderAnalyze(w http.ResponseWriter, status int, st listing.State) {
	s.render(w, status, "analyze", "Analyze listing", newAnalyzePage(st))
}

func (s *Server) handleAnalyzePage(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r).Analyze(r.Context())
	s.renderAnalyze(w, http.StatusOK, c.State())
}

func (s *Server) handleAnalyzeSubmit(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r).Analyze(r.Context())
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	var d listing.Draft
	for _, name := range listing.Fields {
		_ = d.Set(name, r.PostForm.Get(name))
	}

	status := http.StatusOK
	err := c.SubmitDraft(s.backendContext(r), d)
	var invalid listing.ValidationErrors
	switch {
	case err == nil:
	case errors.Is(err, listing.ErrInFlight):
		// The in-flight draft stays on screen.
		status = http.StatusConflict
	case errors.As(err, &invalid):
		status = http.StatusUnprocessableEntity
	case r.Context().Err() != nil:
		return
	default:
		status = http.StatusBadGateway
	}
	s.renderAnalyze(w, status, c.State())
}

// handleAnalyzeField godoc
// @Summary Edit one form field
// @Description Updates a field of the analyze form and clears any displayed error.
// @Tags analyze
// @Accept json
// @Produce json
// @Param body body FieldUpdateRequest true "Field and raw value"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} ErrorResponse
// @Router /analyze/field [post]
func (s *Server) handleAnalyzeField(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	c := sess.Analyze(r.Context())

	var body FieldUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := c.SetField(body.Field, body.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleAnalyzeDismiss(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).Analyze(r.Context()).Dismiss()
	http.Redirect(w, r, "/analyze", http.StatusSeeOther)
}

func (s *Server) handleAnalyzeBack(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).Analyze(r.Context()).Back()
	http.Redirect(w, r, "/analyze", http.StatusSeeOther)
}

type printPage struct {
	Generated string
	View      report.View
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r).Analyze(r.Context()).State()
	if st.Phase != viewstate.Success || st.Outcome == nil {
		writeError(w, http.StatusNotFound, "no analysis to export")
		return
	}

	html, err := s.execute("print", "print", printPage{
		Generated: time.Now().UTC().Format("Jan 2, 2006 15:04 MST"),
		View:      report.Render(st.Outcome.Result, st.Outcome.Listing),
	})
	if err != nil {
		s.logger.Error("rendering print page", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "rendering report")
		return
	}

	pdf, err := s.app.PDF.RenderPDF(r.Context(), html)
	if errors.Is(err, export.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("exporting pdf", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "exporting report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="fraud-report.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
