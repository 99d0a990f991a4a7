// Package handler runs the ingest pipeline shared by every metadata
// source: decode leniently, validate the document, render the canonical
// JSON, persist, invalidate caches and fan out change events.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/geromet/CKAN/utils"
	"github.com/geromet/CKAN/utils/database"
	mongoManager "github.com/geromet/CKAN/utils/database/mongo"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
	"github.com/geromet/CKAN/utils/notify"
	"github.com/geromet/CKAN/utils/registry"
)

// maxDocumentBytes caps what the decoder will even look at. Metadata
// documents are small, anything near this size is not a module.
const maxDocumentBytes = 8 * 1024 * 1024

type ModuleHandler struct {
	DBManager *database.RegistryDBManager
	Notifier  *notify.Notifier
	Logger    *ckanLogger.Logger
}

func NewModuleHandler(dbManager *database.RegistryDBManager, notifier *notify.Notifier, logger *ckanLogger.Logger) *ModuleHandler {
	if logger == nil {
		logger = ckanLogger.NewLogger("ModuleHandler", "INFO", nil)
	}
	return &ModuleHandler{
		DBManager: dbManager,
		Notifier:  notifier,
		Logger:    logger,
	}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func errorResult(status int, message string) *utils.IngestResult {
	return &utils.IngestResult{Status: intPtr(status), ErrorMessage: strPtr(message)}
}

// HandleModuleUpload takes one raw metadata document from any source
// and pushes it through the pipeline. Unusable release entries were
// already dropped with warnings during decode; a document that ends up
// with zero usable releases is rejected as a whole.
func (h *ModuleHandler) HandleModuleUpload(ctx context.Context, raw []byte, source utils.IngestSource, publisher string) (*utils.IngestResult, error) {
	if len(raw) == 0 {
		err := fmt.Errorf("empty metadata document")
		return errorResult(400, err.Error()), err
	}
	if len(raw) > maxDocumentBytes {
		err := fmt.Errorf("metadata document exceeds %d bytes", maxDocumentBytes)
		return errorResult(413, err.Error()), err
	}

	doc, err := registry.DecodeDocument(raw)
	if err != nil {
		h.Logger.Warnf("Rejected metadata from %s: %v", source, err)
		if registry.IsInvalidModuleError(err) || errors.Is(err, registry.ErrMissingReleases) {
			return errorResult(422, err.Error()), err
		}
		return errorResult(400, err.Error()), err
	}
	if doc.Releases.Len() == 0 {
		h.Logger.Warnf("Rejected %s from %s: %v", doc.Identifier, source, registry.ErrNoUsableReleases)
		return errorResult(422, registry.ErrNoUsableReleases.Error()), registry.ErrNoUsableReleases
	}

	rendered, err := json.Marshal(doc)
	if err != nil {
		h.Logger.Errorf("Failed to render document for %s: %v", doc.Identifier, err)
		return errorResult(500, "failed to render document"), err
	}

	uploadID := uuid.NewString()
	latest := ""
	if v, _, ok := doc.Releases.Latest(); ok {
		latest = v.Original()
	}
	stored := &mongoManager.StoredModule{
		Identifier: doc.Identifier,
		Name:       doc.Name,
		Abstract:   doc.Abstract,
		Author:     []string(doc.Author),
		Tags:       doc.Tags,
		Versions:   doc.Releases.Versions(),
		Latest:     latest,
		Source:     string(source),
		Publisher:  publisher,
		UploadID:   uploadID,
		UpdatedAt:  time.Now().UTC(),
		Rendered:   rendered,
	}

	if _, err := h.DBManager.Mongo.UpsertModule(ctx, stored); err != nil {
		h.Logger.Errorf("Failed to upsert module %s: %v", doc.Identifier, err)
		return errorResult(500, "failed to store module"), err
	}
	if err := h.DBManager.Redis.ClearModuleCache(ctx, doc.Identifier); err != nil {
		h.Logger.Errorf("Failed to clear cache for %s: %v", doc.Identifier, err)
	}

	go h.Notifier.NotifyModuleEvent(context.WithoutCancel(ctx), &utils.ModuleEvent{
		Event:      "module.updated",
		Identifier: doc.Identifier,
		Source:     string(source),
		Publisher:  publisher,
		Versions:   stored.Versions,
		Latest:     latest,
		UploadID:   uploadID,
		Time:       stored.UpdatedAt,
	})

	h.Logger.Infof("Stored module %s with %d releases from %s", doc.Identifier, doc.Releases.Len(), source)
	return &utils.IngestResult{
		Status:     intPtr(200),
		Identifier: strPtr(doc.Identifier),
		Versions:   stored.Versions,
		UploadID:   strPtr(uploadID),
	}, nil
}

func (h *ModuleHandler) HandleModuleDelete(ctx context.Context, identifier, publisher string) (*utils.IngestResult, error) {
	found, err := h.DBManager.Mongo.DeleteModule(ctx, identifier)
	if err != nil {
		h.Logger.Errorf("Failed to delete module %s: %v", identifier, err)
		return errorResult(500, "failed to delete module"), err
	}
	if !found {
		err := fmt.Errorf("module %s not found", identifier)
		return errorResult(404, err.Error()), err
	}
	if err := h.DBManager.Redis.ClearModuleCache(ctx, identifier); err != nil {
		h.Logger.Errorf("Failed to clear cache for %s: %v", identifier, err)
	}

	go h.Notifier.NotifyModuleEvent(context.WithoutCancel(ctx), &utils.ModuleEvent{
		Event:      "module.deleted",
		Identifier: identifier,
		Source:     string(utils.IngestSourceAPI),
		Publisher:  publisher,
		Time:       time.Now().UTC(),
	})

	h.Logger.Infof("Deleted module %s", identifier)
	return &utils.IngestResult{Status: intPtr(200), Identifier: strPtr(identifier)}, nil
}
