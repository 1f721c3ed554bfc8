package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// handleReportDownload streams a generated report. It accepts either a live
// session cookie or a signed download grant, so minted links keep working in
// spreadsheet tooling and curl.
func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	kind, err := report.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.renderErrorPage(w, r, err)
		return
	}

	if _, ok := s.sessionUser(r); !ok {
		token := strings.TrimSpace(r.URL.Query().Get(routepath.GrantQueryKey))
		if token == "" {
			http.Redirect(w, r, routepath.Login, http.StatusSeeOther)
			return
		}
		if err := s.grants.Verify(token, batchID, string(kind), s.clock()); err != nil {
			s.renderErrorPage(w, r, err)
			return
		}
	}

	doc, err := s.reports.Generate(r.Context(), batchID, kind, s.clock())
	if err != nil {
		s.renderErrorPage(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	_, _ = w.Write(doc.Data)
}
