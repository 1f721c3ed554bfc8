// Package routepath stores canonical HTTP paths for the web surface.
package routepath

import (
	"net/url"
	"strings"
)

const (
	Root   = "/"
	Login  = "/entrar"
	Logout = "/sair"
	Health = "/up"

	StaticPrefix = "/static/"

	Batches            = "/lotes"
	BatchUpload        = "/lotes/enviar"
	BatchesPrefix      = "/lotes/"
	BatchPattern       = BatchesPrefix + "{id}"
	BatchReportPattern = BatchesPrefix + "{id}/relatorios/{kind}"

	APIBatches                = "/api/v1/lotes"
	APIBatchesPrefix          = "/api/v1/lotes/"
	APIBatchPattern           = APIBatchesPrefix + "{id}"
	APIBatchMetricsPattern    = APIBatchesPrefix + "{id}/metricas"
	APIBatchFindingsPattern   = APIBatchesPrefix + "{id}/ocorrencias"
	APIBatchReprocessPattern  = APIBatchesPrefix + "{id}/reprocessar"
	APIBatchReportLinkPattern = APIBatchesPrefix + "{id}/relatorios/{kind}/link"

	// FindingCodeQueryKey filters the findings API by finding code.
	FindingCodeQueryKey = "codigo"
	// GrantQueryKey carries a signed download grant on report URLs.
	GrantQueryKey = "token"
	// LangQueryKey switches the display language for the session.
	LangQueryKey = "lang"
)

// Batch returns the batch detail route.
func Batch(id string) string {
	return BatchesPrefix + escapeSegment(id)
}

// BatchReport returns the report download route for a batch.
func BatchReport(id, kind string) string {
	return Batch(id) + "/relatorios/" + escapeSegment(kind)
}

// APIBatch returns the batch detail API route.
func APIBatch(id string) string {
	return APIBatchesPrefix + escapeSegment(id)
}

// APIBatchReportLink returns the grant-minting API route for a report.
func APIBatchReportLink(id, kind string) string {
	return APIBatch(id) + "/relatorios/" + escapeSegment(kind) + "/link"
}

func escapeSegment(raw string) string {
	return url.PathEscape(strings.TrimSpace(raw))
}
