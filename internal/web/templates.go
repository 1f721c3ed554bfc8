package web

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"golang.org/x/text/message"

	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	errorsi18n "github.com/potaudit/potaudit/internal/platform/errors/i18n"
	"github.com/potaudit/potaudit/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var assetsFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// page carries the fields every rendered view shares.
type page struct {
	Title    string
	Lang     string
	SignedIn bool
	User     storage.User
	printer  *message.Printer
}

// T translates a catalog key for the page locale.
func (p page) T(key string) string {
	return p.printer.Sprintf(key)
}

func (s *Server) newPage(r *http.Request, titleKey string) page {
	tag := localeOf(r)
	printer := message.NewPrinter(tag)
	p := page{
		Lang:    tag.String(),
		printer: printer,
		Title:   printer.Sprintf(titleKey),
	}
	if user, ok := userFrom(r.Context()); ok {
		p.SignedIn = true
		p.User = user
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, view any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, view); err != nil {
		log.Printf("web: render %s: %v", name, err)
	}
}

// errorMessage localizes err for display. Non-domain errors fall back to the
// generic unknown-error message.
func (s *Server) errorMessage(r *http.Request, err error) string {
	code := apperrors.CodeOf(err)
	var metadata map[string]string
	if appErr, ok := apperrors.FromError(err); ok {
		metadata = appErr.Metadata
	}
	return errorsi18n.GetCatalog(localeOf(r).String()).Format(string(code), metadata)
}

type errorView struct {
	page
	Message string
}

// renderErrorPage renders the shared error page with err's HTTP status and
// localized message.
func (s *Server) renderErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	view := errorView{
		page:    s.newPage(r, "web.error.title"),
		Message: s.errorMessage(r, err),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(apperrors.HTTPStatus(err))
	if execErr := templates.ExecuteTemplate(w, "error.html", view); execErr != nil {
		log.Printf("web: render error.html: %v", execErr)
	}
}
