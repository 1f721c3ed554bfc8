package spool

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestNewCreatesDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "spool")
	dir, err := New(root)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	info, err := os.Stat(dir.Root())
	if err != nil {
		t.Fatalf("stat spool root: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected spool root directory")
	}
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	dir := openTempSpool(t)

	path, err := dir.Save("batch-1", KindPayments, ".csv", strings.NewReader("cpf;nome\n1;Ana\n"))
	if err != nil {
		t.Fatalf("save spool file: %v", err)
	}
	if filepath.Base(path) != "batch-1.pagamentos.csv" {
		t.Fatalf("unexpected spool name: %s", filepath.Base(path))
	}

	file, err := dir.Open("batch-1", KindPayments)
	if err != nil {
		t.Fatalf("open spool file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			t.Fatalf("close spool file: %v", err)
		}
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("read spool file: %v", err)
	}
	if string(data) != "cpf;nome\n1;Ana\n" {
		t.Fatalf("unexpected spool contents: %q", data)
	}
}

func TestSaveReplacesPreviousFormat(t *testing.T) {
	dir := openTempSpool(t)

	if _, err := dir.Save("batch-1", KindPayments, ".csv", strings.NewReader("old")); err != nil {
		t.Fatalf("save spool file: %v", err)
	}
	if _, err := dir.Save("batch-1", KindPayments, ".xlsx", strings.NewReader("new")); err != nil {
		t.Fatalf("save spool file again: %v", err)
	}

	path, err := dir.Find("batch-1", KindPayments)
	if err != nil {
		t.Fatalf("find spool file: %v", err)
	}
	if filepath.Base(path) != "batch-1.pagamentos.xlsx" {
		t.Fatalf("unexpected spool name: %s", filepath.Base(path))
	}
	if _, err := os.Stat(filepath.Join(dir.Root(), "batch-1.pagamentos.csv")); !os.IsNotExist(err) {
		t.Fatal("expected stale csv removed")
	}
}

func TestSaveRejectsBadComponents(t *testing.T) {
	dir := openTempSpool(t)

	cases := []struct {
		name    string
		batchID string
		kind    string
		ext     string
	}{
		{name: "traversal id", batchID: "../etc", kind: KindPayments, ext: ".csv"},
		{name: "empty id", batchID: "", kind: KindPayments, ext: ".csv"},
		{name: "glob id", batchID: "batch*", kind: KindPayments, ext: ".csv"},
		{name: "unknown kind", batchID: "batch-1", kind: "notas", ext: ".csv"},
		{name: "missing dot", batchID: "batch-1", kind: KindPayments, ext: "csv"},
		{name: "separator ext", batchID: "batch-1", kind: KindPayments, ext: "./x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := dir.Save(tc.batchID, tc.kind, tc.ext, strings.NewReader("x")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFindMissingFile(t *testing.T) {
	dir := openTempSpool(t)

	_, err := dir.Find("batch-1", KindAccounts)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestRemoveDeletesAllKinds(t *testing.T) {
	dir := openTempSpool(t)

	if _, err := dir.Save("batch-1", KindPayments, ".csv", strings.NewReader("p")); err != nil {
		t.Fatalf("save payments: %v", err)
	}
	if _, err := dir.Save("batch-1", KindAccounts, ".xlsx", strings.NewReader("a")); err != nil {
		t.Fatalf("save accounts: %v", err)
	}
	if _, err := dir.Save("batch-2", KindPayments, ".csv", strings.NewReader("other")); err != nil {
		t.Fatalf("save other batch: %v", err)
	}

	if err := dir.Remove("batch-1"); err != nil {
		t.Fatalf("remove batch files: %v", err)
	}
	if _, err := dir.Find("batch-1", KindPayments); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("expected payments removed")
	}
	if _, err := dir.Find("batch-1", KindAccounts); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("expected accounts removed")
	}
	if _, err := dir.Find("batch-2", KindPayments); err != nil {
		t.Fatalf("expected other batch retained: %v", err)
	}

	// Removing an empty batch is a no-op.
	if err := dir.Remove("batch-1"); err != nil {
		t.Fatalf("remove again: %v", err)
	}
}

func openTempSpool(t *testing.T) *Dir {
	t.Helper()
	dir, err := New(filepath.Join(t.TempDir(), "spool"))
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	return dir
}
