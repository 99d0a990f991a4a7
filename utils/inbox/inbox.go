// Package inbox ingests metadata documents dropped into a local
// directory. Files are picked up on a filesystem event, pushed through
// the module handler and moved to processed/ or failed/. Producers
// should move files into the inbox atomically (write elsewhere, then
// rename) so a file is complete when its event fires.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zstd"

	"github.com/geromet/CKAN/utils"
	ckanHandler "github.com/geromet/CKAN/utils/handler"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

const (
	processedDirName = "processed"
	failedDirName    = "failed"
)

type Watcher struct {
	Dir     string
	Handler *ckanHandler.ModuleHandler
	Logger  *ckanLogger.Logger

	decoder *zstd.Decoder
}

func NewWatcher(dir string, handler *ckanHandler.ModuleHandler, logger *ckanLogger.Logger) *Watcher {
	if logger == nil {
		logger = ckanLogger.NewLogger("Inbox", "INFO", nil)
	}
	return &Watcher{
		Dir:     dir,
		Handler: handler,
		Logger:  logger,
	}
}

// Run watches the inbox until the context is cancelled. Files already
// present at startup are processed first, so documents dropped while
// the backend was down are not lost.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.Dir, filepath.Join(w.Dir, processedDirName), filepath.Join(w.Dir, failedDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox directory %q: %w", dir, err)
		}
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	w.decoder = decoder
	defer decoder.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %q: %w", w.Dir, err)
	}

	w.sweep(ctx)
	w.Logger.Infof("Watching inbox directory %s", w.Dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !acceptsFile(event.Name) {
				continue
			}
			w.processFile(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Errorf("Inbox watcher error: %v", err)
		}
	}
}

var acceptedExtensions = []string{".json", ".ckan", ".zst"}

func acceptsFile(name string) bool {
	return utils.ArrayContains(acceptedExtensions, strings.ToLower(filepath.Ext(name)))
}

func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		w.Logger.Errorf("Failed to scan inbox directory: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !acceptsFile(entry.Name()) {
			continue
		}
		w.processFile(ctx, filepath.Join(w.Dir, entry.Name()))
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Duplicate events are normal, the file is usually gone
		// because an earlier event already processed it.
		if !os.IsNotExist(err) {
			w.Logger.Errorf("Failed to read inbox file %s: %v", path, err)
		}
		return
	}

	if strings.EqualFold(filepath.Ext(path), ".zst") {
		raw, err = w.decoder.DecodeAll(raw, nil)
		if err != nil {
			w.Logger.Warnf("Failed to decompress inbox file %s: %v", path, err)
			w.moveTo(path, failedDirName)
			return
		}
	}

	result, err := w.Handler.HandleModuleUpload(ctx, raw, utils.IngestSourceInbox, "")
	if err != nil {
		message := err.Error()
		if result != nil && result.ErrorMessage != nil {
			message = *result.ErrorMessage
		}
		w.Logger.Warnf("Rejected inbox file %s: %s", path, message)
		w.moveTo(path, failedDirName)
		return
	}

	if result.Identifier != nil {
		w.Logger.Infof("Ingested %s from inbox file %s", *result.Identifier, filepath.Base(path))
	}
	w.moveTo(path, processedDirName)
}

func (w *Watcher) moveTo(path, subdir string) {
	target := filepath.Join(w.Dir, subdir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		w.Logger.Errorf("Failed to move inbox file %s to %s: %v", path, subdir, err)
	}
}
