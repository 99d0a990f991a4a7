package handler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/geromet/CKAN/utils"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
	"github.com/geromet/CKAN/utils/registry"
)

// Rejection paths return before the pipeline touches storage, so a
// handler without a database manager is enough here.
func newTestHandler() *ModuleHandler {
	return &ModuleHandler{Logger: ckanLogger.NewLogger("ModuleHandlerTest", "ERROR", io.Discard)}
}

func TestHandleModuleUploadRejectsBadInput(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    func(error) bool
	}{
		{
			name:       "empty body",
			body:       "",
			wantStatus: 400,
		},
		{
			name:       "malformed json",
			body:       `{"spec_version": "v1.4"`,
			wantStatus: 400,
		},
		{
			name:       "releases wrong shape",
			body:       `{"spec_version": "v1.4", "identifier": "AwesomeMod", "name": "Awesome Mod", "releases": ["1.0"]}`,
			wantStatus: 400,
		},
		{
			name:       "missing identifier",
			body:       `{"spec_version": "v1.4", "name": "Awesome Mod", "releases": {}}`,
			wantStatus: 422,
			wantErr:    registry.IsInvalidModuleError,
		},
		{
			name:       "missing releases",
			body:       `{"spec_version": "v1.4", "identifier": "AwesomeMod", "name": "Awesome Mod"}`,
			wantStatus: 422,
			wantErr:    func(err error) bool { return errors.Is(err, registry.ErrMissingReleases) },
		},
		{
			name:       "null releases",
			body:       `{"spec_version": "v1.4", "identifier": "AwesomeMod", "name": "Awesome Mod", "releases": null}`,
			wantStatus: 422,
			wantErr:    func(err error) bool { return errors.Is(err, registry.ErrMissingReleases) },
		},
		{
			name:       "no usable releases",
			body:       `{"spec_version": "v1.4", "identifier": "AwesomeMod", "name": "Awesome Mod", "releases": {"not-a-version": {"license": "MIT", "download": "https://example.com/a.zip"}, "1.0.0": {"license": "NoSuchLicense", "download": "https://example.com/a.zip"}}}`,
			wantStatus: 422,
			wantErr:    func(err error) bool { return errors.Is(err, registry.ErrNoUsableReleases) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := h.HandleModuleUpload(ctx, []byte(tc.body), utils.IngestSourceAPI, "tester")
			if err == nil {
				t.Fatalf("expected an error, got result %+v", result)
			}
			if result == nil || result.Status == nil || *result.Status != tc.wantStatus {
				t.Fatalf("expected status %d, got %+v", tc.wantStatus, result)
			}
			if result.ErrorMessage == nil || *result.ErrorMessage == "" {
				t.Fatalf("expected an error message in the result")
			}
			if tc.wantErr != nil && !tc.wantErr(err) {
				t.Fatalf("error has the wrong kind: %v", err)
			}
		})
	}
}

func TestHandleModuleUploadRejectsOversizedBody(t *testing.T) {
	h := newTestHandler()
	body := make([]byte, maxDocumentBytes+1)
	result, err := h.HandleModuleUpload(context.Background(), body, utils.IngestSourceInbox, "")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if result.Status == nil || *result.Status != 413 {
		t.Fatalf("expected status 413, got %v", result.Status)
	}
}
