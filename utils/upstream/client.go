// Package upstream talks to another registry instance that this one
// mirrors. The upstream exposes the same public API this backend
// serves, so the client reads the module index and raw metadata
// documents from it.
package upstream

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	ckanLogger "github.com/geromet/CKAN/utils/logger"
	ckanVersion "github.com/geromet/CKAN/version"
)

type UpstreamRegistryClient struct {
	httpClient *resty.Client
	endpoint   string
	token      string
}

type UpstreamResult struct {
	Available bool
	Found     bool
}

// UpstreamModule is the slice of an index entry the syncer needs.
type UpstreamModule struct {
	Identifier string    `json:"identifier"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type upstreamIndexData struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Modules  []UpstreamModule `json:"modules"`
}

type upstreamIndexResponse struct {
	Status  int                `json:"status"`
	Message string             `json:"message"`
	Data    *upstreamIndexData `json:"data"`
}

func NewUpstreamRegistryClient(endpoint, token string) *UpstreamRegistryClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", fmt.Sprintf("CKAN-Registry/%s", ckanVersion.Version))
	client.SetHeader("Accept", "application/json")
	return &UpstreamRegistryClient{
		httpClient: client,
		endpoint:   endpoint,
		token:      token,
	}
}

func (c *UpstreamRegistryClient) request() *resty.Request {
	r := c.httpClient.R()
	if c.token != "" {
		r.SetHeader("Authorization", "Bearer "+c.token)
	}
	return r
}

func (c *UpstreamRegistryClient) FetchModuleIndex(page, pageSize int) ([]UpstreamModule, int64, error) {
	url := fmt.Sprintf("%s/modules", c.endpoint)
	resp, err := c.request().
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		Get(url)
	if err != nil {
		ckanLogger.Errorf("Upstream index request failed for %s: %v", url, err)
		return nil, 0, fmt.Errorf("upstream request failed: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, 0, fmt.Errorf("upstream index request failed, status code: %d", resp.StatusCode())
	}

	var decoded upstreamIndexResponse
	if err := sonic.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, 0, fmt.Errorf("failed to decode upstream index: %w", err)
	}
	if decoded.Data == nil {
		return nil, 0, fmt.Errorf("upstream index response has no data: %s", decoded.Message)
	}
	return decoded.Data.Modules, decoded.Data.Total, nil
}

// FetchModuleDocument returns the raw rendered metadata document for
// one module. The body is fed back through the local ingest pipeline,
// so it is returned untouched.
func (c *UpstreamRegistryClient) FetchModuleDocument(identifier string) (*UpstreamResult, []byte, error) {
	url := fmt.Sprintf("%s/module/%s", c.endpoint, identifier)
	resp, err := c.request().Get(url)
	if err != nil {
		ckanLogger.Errorf("Upstream document request failed for %s: %v", url, err)
		return nil, nil, fmt.Errorf("upstream request failed: %v", err)
	}

	statusCode := resp.StatusCode()
	body := resp.Body()

	// Error envelopes can come back with status 200 through some
	// intermediaries, so sniff the body before trusting the code. A
	// real document never carries a top level status member.
	if len(body) > 0 {
		var bodyData map[string]any
		if jsonErr := sonic.Unmarshal(body, &bodyData); jsonErr == nil {
			if statusVal, ok := bodyData["status"].(float64); ok && int(statusVal) >= 400 {
				message, _ := bodyData["message"].(string)
				switch {
				case int(statusVal) == 404 || statusCode == 404:
					return &UpstreamResult{Available: true, Found: false}, nil, fmt.Errorf("module does not exist upstream: %s", message)
				case int(statusVal) >= 500 || statusCode >= 500:
					ckanLogger.Errorf("Upstream returned server error for %s: %s", url, message)
					return &UpstreamResult{Available: false, Found: false}, nil, fmt.Errorf("upstream server error: %s", message)
				default:
					return &UpstreamResult{Available: true, Found: false}, nil, fmt.Errorf("upstream error (status %d): %s", int(statusVal), message)
				}
			}
		}
	}

	switch statusCode {
	case 200:
		return &UpstreamResult{Available: true, Found: true}, body, nil
	case 404:
		return &UpstreamResult{Available: true, Found: false}, nil, fmt.Errorf("module %s does not exist upstream", identifier)
	case 503:
		ckanLogger.Warnf("Upstream returned 503 (maintenance) for %s", url)
		return &UpstreamResult{Available: false, Found: false}, nil, fmt.Errorf("upstream registry is under maintenance")
	default:
		ckanLogger.Errorf("Upstream returned unexpected status %d for %s", statusCode, url)
		return &UpstreamResult{Available: false, Found: false}, nil, fmt.Errorf("upstream request failed, status code: %d", statusCode)
	}
}
