package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/potaudit/potaudit/internal/batch"
	"github.com/potaudit/potaudit/internal/spool"
)

const (
	defaultSettle = 2 * time.Second
	sweepInterval = 500 * time.Millisecond
)

// Watcher registers batches from spreadsheets dropped into a directory.
// A file named <name>.pagamentos.csv (or .xlsx/.txt) becomes a batch named
// <name>; a sibling <name>.contas.* is picked up as its accounts file.
// Files are held until writes go quiet so half-copied spreadsheets are not
// registered, then moved into the spool.
type Watcher struct {
	dir       string
	registrar *batch.Registrar
	settle    time.Duration
}

// NewWatcher builds a Watcher over a directory, creating it when needed.
func NewWatcher(dir string, registrar *batch.Registrar) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("watch dir is required")
	}
	if registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	return &Watcher{dir: dir, registrar: registrar, settle: defaultSettle}, nil
}

// Run watches the directory until ctx is cancelled. Cancellation is a clean
// stop. Files already present at startup register through the same path as
// fresh drops.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.registrar == nil {
		return fmt.Errorf("watcher is not configured")
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start directory watcher: %w", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Printf("worker: close directory watcher: %v", err)
		}
	}()
	if err := notifier.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	log.Printf("worker: watching %s for spreadsheet drops", w.dir)

	pending := map[string]time.Time{}
	w.seedPending(pending)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedDropName(filepath.Base(event.Name)) {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			log.Printf("worker: watch %s: %v", w.dir, err)
		case <-ticker.C:
			w.sweep(ctx, pending)
		}
	}
}

// seedPending queues files already sitting in the watch directory.
func (w *Watcher) seedPending(pending map[string]time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("worker: scan watch dir %s: %v", w.dir, err)
		return
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !watchedDropName(entry.Name()) {
			continue
		}
		pending[filepath.Join(w.dir, entry.Name())] = now
	}
}

// sweep registers every payments drop whose writes have settled. A payments
// file waits for its accounts sibling to settle too, so a pair copied
// together registers as one complete batch.
func (w *Watcher) sweep(ctx context.Context, pending map[string]time.Time) {
	now := time.Now()
	for path, last := range pending {
		if now.Sub(last) < w.settle {
			continue
		}
		base := filepath.Base(path)
		name, _, isPayments := paymentsDropName(base)
		if !isPayments {
			// An accounts file registers alongside its payments sibling;
			// an orphan with no sibling in sight eventually expires.
			if now.Sub(last) >= 10*w.settle {
				delete(pending, path)
			}
			continue
		}
		if hotAccountsSibling(pending, name, now, w.settle) {
			continue
		}
		delete(pending, path)
		clearAccountsSibling(pending, name)
		w.registerDrop(ctx, path, name)
	}
}

// registerDrop registers one settled payments file plus its optional
// accounts sibling and clears both from the watch directory.
func (w *Watcher) registerDrop(ctx context.Context, path, name string) {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("worker: open dropped file %s: %v", path, err)
		}
		return
	}
	defer func() { _ = file.Close() }()

	input := batch.Input{
		Name:     name,
		Source:   filepath.Base(path),
		Payments: file,
	}

	accountsPath := w.findAccountsSibling(name)
	if accountsPath != "" {
		accountsFile, err := os.Open(accountsPath)
		if err != nil {
			log.Printf("worker: open accounts sibling %s: %v", accountsPath, err)
		} else {
			defer func() { _ = accountsFile.Close() }()
			input.Accounts = accountsFile
			input.AccountsSource = filepath.Base(accountsPath)
		}
	}

	created, err := w.registrar.Register(ctx, input)
	if err != nil {
		log.Printf("worker: register dropped batch %s: %v", name, err)
		return
	}
	log.Printf("worker: registered batch %s from %s", created.ID, filepath.Base(path))

	w.removeDrop(path)
	if accountsPath != "" {
		w.removeDrop(accountsPath)
	}
}

// findAccountsSibling locates <name>.contas.* next to a payments drop.
func (w *Watcher) findAccountsSibling(name string) string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("worker: scan watch dir %s: %v", w.dir, err)
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if sibling, ok := accountsDropName(entry.Name()); ok && sibling == name {
			return filepath.Join(w.dir, entry.Name())
		}
	}
	return ""
}

func (w *Watcher) removeDrop(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("worker: remove dropped file %s: %v", path, err)
	}
}

// paymentsDropName splits a "<name>.pagamentos<ext>" drop file name.
func paymentsDropName(fileName string) (name, ext string, ok bool) {
	return dropName(fileName, spool.KindPayments)
}

// accountsDropName splits a "<name>.contas<ext>" drop file name.
func accountsDropName(fileName string) (string, bool) {
	name, _, ok := dropName(fileName, spool.KindAccounts)
	return name, ok
}

func dropName(fileName, kind string) (string, string, bool) {
	lower := strings.ToLower(fileName)
	for _, ext := range []string{".csv", ".xlsx", ".txt"} {
		suffix := "." + kind + ext
		if strings.HasSuffix(lower, suffix) && len(fileName) > len(suffix) {
			return fileName[:len(fileName)-len(suffix)], ext, true
		}
	}
	return "", "", false
}

func watchedDropName(fileName string) bool {
	if _, _, ok := paymentsDropName(fileName); ok {
		return true
	}
	_, ok := accountsDropName(fileName)
	return ok
}

// hotAccountsSibling reports whether an accounts drop for name is still
// being written.
func hotAccountsSibling(pending map[string]time.Time, name string, now time.Time, settle time.Duration) bool {
	for path, last := range pending {
		if sibling, ok := accountsDropName(filepath.Base(path)); ok && sibling == name && now.Sub(last) < settle {
			return true
		}
	}
	return false
}

func clearAccountsSibling(pending map[string]time.Time, name string) {
	for path := range pending {
		if sibling, ok := accountsDropName(filepath.Base(path)); ok && sibling == name {
			delete(pending, path)
		}
	}
}
