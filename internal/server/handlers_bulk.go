package server

import (
	"errors"
	"net/http"

	"github.com/truthinlistings/dashboard/internal/bulk"
)

type bulkPage struct {
	bulk.View
	Busy  bool
	Empty bool
	Ready bool
}

func (s *Server) renderBulk(w http.ResponseWriter, status int, v bulk.View) {
	s.render(w, status, "bulk", "Bulk analysis", bulkPage{
		View:  v,
		Busy:  v.Status == bulk.Busy,
		Empty: v.Status == bulk.Empty,
		Ready: v.Status == bulk.Ready,
	})
}

func (s *Server) handleBulkPage(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r).Bulk(r.Context())
	if q, ok := r.URL.Query()["q"]; ok {
		c.SetFilter(q[0])
	}
	s.renderBulk(w, http.StatusOK, c.View())
}

func (s *Server) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r).Bulk(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	var err error
	file, header, ferr := r.FormFile("file")
	if ferr != nil {
		// No usable file part; the controller records the rejection.
		err = c.Upload(r.Context(), "", "", http.NoBody)
	} else {
		defer file.Close()
		err = c.Upload(s.backendContext(r), header.Filename, header.Header.Get("Content-Type"), file)
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, bulk.ErrNotCSV):
		status = http.StatusBadRequest
	case errors.Is(err, bulk.ErrInFlight):
		status = http.StatusConflict
	case r.Context().Err() != nil:
		return
	default:
		status = http.StatusBadGateway
	}
	s.renderBulk(w, status, c.View())
}

func (s *Server) handleBulkReset(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).Bulk(r.Context()).Reset()
	http.Redirect(w, r, "/bulk", http.StatusSeeOther)
}
