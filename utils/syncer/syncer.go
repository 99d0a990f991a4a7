// Package syncer periodically mirrors modules from an upstream
// registry into the local one. Documents are pulled as raw bytes and
// pushed through the normal ingest pipeline, so upstream content gets
// the same validation and lenient release decoding as direct uploads.
package syncer

import (
	"context"
	"math/rand"
	"time"

	"github.com/geromet/CKAN/utils"
	ckanHandler "github.com/geromet/CKAN/utils/handler"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
	"github.com/geromet/CKAN/utils/upstream"
)

const (
	defaultInterval = 30 * time.Minute
	defaultPageSize = 50
)

type Syncer struct {
	Client   *upstream.UpstreamRegistryClient
	Handler  *ckanHandler.ModuleHandler
	Interval time.Duration
	// Identifiers limits the mirror to a fixed set of modules. When
	// empty the whole upstream index is walked page by page.
	Identifiers []string
	PageSize    int
	Logger      *ckanLogger.Logger
}

func NewSyncer(client *upstream.UpstreamRegistryClient, handler *ckanHandler.ModuleHandler, interval time.Duration, identifiers []string, logger *ckanLogger.Logger) *Syncer {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = ckanLogger.NewLogger("Syncer", "INFO", nil)
	}
	return &Syncer{
		Client:      client,
		Handler:     handler,
		Interval:    interval,
		Identifiers: identifiers,
		PageSize:    defaultPageSize,
		Logger:      logger,
	}
}

// Run blocks until ctx is cancelled. The first sync is delayed by a
// short random amount so several instances restarted together do not
// hit the upstream at the same moment, later ones follow the
// configured interval.
func (s *Syncer) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(rand.Int63n(int64(30 * time.Second)))):
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if err := s.SyncOnce(ctx); err != nil {
		s.Logger.Errorf("Upstream sync failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.Logger.Errorf("Upstream sync failed: %v", err)
			}
		}
	}
}

// SyncOnce runs one full mirror pass. A module that fails to fetch or
// ingest is logged and skipped, it does not stop the pass.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Errorf("Recovered from panic during upstream sync: %v", r)
		}
	}()

	started := time.Now()
	var synced, failed int
	var err error
	if len(s.Identifiers) > 0 {
		synced, failed, err = s.syncConfigured(ctx)
	} else {
		synced, failed, err = s.syncIndex(ctx)
	}
	if err != nil {
		return err
	}
	s.Logger.Infof("Upstream sync finished in %s: %d modules synced, %d failed", time.Since(started).Round(time.Millisecond), synced, failed)
	return nil
}

func (s *Syncer) syncConfigured(ctx context.Context) (int, int, error) {
	synced := 0
	failed := 0
	for _, identifier := range s.Identifiers {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if s.syncModule(ctx, identifier) {
			synced++
		} else {
			failed++
		}
	}
	return synced, failed, nil
}

func (s *Syncer) syncIndex(ctx context.Context) (int, int, error) {
	synced := 0
	failed := 0
	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		modules, total, err := s.Client.FetchModuleIndex(page, s.PageSize)
		if err != nil {
			return synced, failed, err
		}
		if len(modules) == 0 {
			break
		}
		for _, module := range modules {
			if err := ctx.Err(); err != nil {
				return synced, failed, err
			}
			if s.syncModule(ctx, module.Identifier) {
				synced++
			} else {
				failed++
			}
		}
		if int64(page*s.PageSize) >= total {
			break
		}
		page++
	}
	return synced, failed, nil
}

func (s *Syncer) syncModule(ctx context.Context, identifier string) bool {
	result, body, err := s.Client.FetchModuleDocument(identifier)
	if err != nil {
		if result != nil && !result.Available {
			s.Logger.Warnf("Upstream unavailable while fetching %s: %v", identifier, err)
		} else {
			s.Logger.Warnf("Failed to fetch module %s from upstream: %v", identifier, err)
		}
		return false
	}
	if _, err := s.Handler.HandleModuleUpload(ctx, body, utils.IngestSourceUpstream, ""); err != nil {
		s.Logger.Warnf("Upstream module %s rejected by ingest: %v", identifier, err)
		return false
	}
	return true
}
