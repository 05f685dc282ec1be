package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/history"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/report"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

type historyPage struct {
	View          history.View
	Loading       bool
	Loaded        bool
	DetailLoading bool
	Detail        *historyDetail
}

type historyDetail struct {
	Price  string
	Stamp  string
	Report report.View
}

func newHistoryDetail(rec *apiclient.HistoryRecord) *historyDetail {
	in := apiclient.ListingInput{Title: rec.Title, City: rec.City, Locality: rec.Locality}
	d := &historyDetail{}
	if rec.Price != nil {
		in.Price = *rec.Price
		d.Price = fmt.Sprintf("%.0f", *rec.Price)
	}
	if t, ok := rec.Time(); ok {
		d.Stamp = t.Format("Jan 2, 2006 15:04")
	}
	d.Report = report.Render(apiclient.AnalysisResult{
		FraudProbability: rec.FraudProbability,
		FraudTypes:       rec.FraudTypes,
		Explanations:     rec.Explanations,
		ModuleScores:     rec.ModuleScores,
	}, in)
	return d
}

func (s *Server) renderHistory(w http.ResponseWriter, status int, v history.View) {
	p := historyPage{
		View:          v,
		Loading:       v.ListPhase == viewstate.Loading,
		Loaded:        v.ListPhase == viewstate.Success,
		DetailLoading: v.DetailPhase == viewstate.Loading,
	}
	if v.DetailPhase == viewstate.Success && v.Detail != nil {
		p.Detail = newHistoryDetail(v.Detail)
	}
	s.render(w, status, "history", "History", p)
}

// statusFor maps a fraud API failure to the dashboard's response status.
func statusFor(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	b, err := s.session(w, r).History(s.backendContext(r))
	if err != nil && r.Context().Err() != nil {
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	s.renderHistory(w, status, b.View())
}

func (s *Server) handleHistoryRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := s.backendContext(r)
	b, _ := s.session(w, r).History(ctx)
	if err := b.Refresh(ctx); err != nil && r.Context().Err() == nil {
		s.renderHistory(w, http.StatusBadGateway, b.View())
		return
	}
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := s.backendContext(r)
	b, _ := s.session(w, r).History(ctx)

	status := http.StatusOK
	if err := b.Select(ctx, id); err != nil {
		if r.Context().Err() != nil {
			return
		}
		status = statusFor(err)
	}
	s.renderHistory(w, status, b.View())
}

func (s *Server) handleHistoryClose(w http.ResponseWriter, r *http.Request) {
	b, _ := s.session(w, r).History(s.backendContext(r))
	b.CloseDetail()
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

type comparePage struct {
	Comparison *history.Comparison
	Message    string
}

func (s *Server) handleHistoryCompare(w http.ResponseWriter, r *http.Request) {
	ctx := s.backendContext(r)
	sess := s.session(w, r)
	if _, err := sess.History(ctx); err != nil && r.Context().Err() != nil {
		return
	}

	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.render(w, http.StatusBadRequest, "compare", "Compare", comparePage{
			Message: "Select two analyses to compare.",
		})
		return
	}

	cmp, err := history.Compare(ctx, s.app.Backend, a, b)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Warn("comparing history records",
			logging.Field{Key: "a", Value: a},
			logging.Field{Key: "b", Value: b},
			logging.Err(err))
		s.render(w, statusFor(err), "compare", "Compare", comparePage{Message: apiclient.UserMessage(err)})
		return
	}
	s.render(w, http.StatusOK, "compare", "Compare", comparePage{Comparison: cmp})
}
