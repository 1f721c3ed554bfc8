package routepath

import "testing"

func TestRouteConstants(t *testing.T) {
	t.Parallel()

	if Login != "/entrar" {
		t.Fatalf("Login = %q", Login)
	}
	if Logout != "/sair" {
		t.Fatalf("Logout = %q", Logout)
	}
	if Batches != "/lotes" {
		t.Fatalf("Batches = %q", Batches)
	}
	if BatchUpload != "/lotes/enviar" {
		t.Fatalf("BatchUpload = %q", BatchUpload)
	}
	if BatchPattern != "/lotes/{id}" {
		t.Fatalf("BatchPattern = %q", BatchPattern)
	}
	if BatchReportPattern != "/lotes/{id}/relatorios/{kind}" {
		t.Fatalf("BatchReportPattern = %q", BatchReportPattern)
	}
	if APIBatchFindingsPattern != "/api/v1/lotes/{id}/ocorrencias" {
		t.Fatalf("APIBatchFindingsPattern = %q", APIBatchFindingsPattern)
	}
}

func TestRouteBuilders(t *testing.T) {
	t.Parallel()

	if got := Batch("abc123"); got != "/lotes/abc123" {
		t.Fatalf("Batch = %q", got)
	}
	if got := Batch(" abc 123 "); got != "/lotes/abc%20123" {
		t.Fatalf("Batch with spaces = %q", got)
	}
	if got := BatchReport("abc", "ajustes"); got != "/lotes/abc/relatorios/ajustes" {
		t.Fatalf("BatchReport = %q", got)
	}
	if got := APIBatch("abc"); got != "/api/v1/lotes/abc" {
		t.Fatalf("APIBatch = %q", got)
	}
	if got := APIBatchReportLink("abc", "dados"); got != "/api/v1/lotes/abc/relatorios/dados/link" {
		t.Fatalf("APIBatchReportLink = %q", got)
	}
}
