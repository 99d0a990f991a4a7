// Package notify pushes module change events to the webhook endpoints
// named in the configuration. Delivery is best effort, failures are
// logged and never fail the ingest that triggered them.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/geromet/CKAN/utils"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
	ckanVersion "github.com/geromet/CKAN/version"
)

type Notifier struct {
	Webhooks []string
	Timeout  time.Duration
	Logger   *ckanLogger.Logger
	client   *fasthttp.Client
}

// NewNotifier builds a notifier for the given webhook URLs. An outbound
// proxy may be supplied the same way as for the rest of the backend.
func NewNotifier(proxy string, webhooks []string, timeout time.Duration, logger *ckanLogger.Logger) (*Notifier, error) {
	client := &fasthttp.Client{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %v", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			client.Dial = fasthttpproxy.FasthttpHTTPDialer(proxyURL.Host)
		case "socks5":
			client.Dial = fasthttpproxy.FasthttpSocksDialer(proxyURL.Host)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
		}
	}
	if logger == nil {
		logger = ckanLogger.NewLogger("Notify", "INFO", nil)
	}
	return &Notifier{
		Webhooks: webhooks,
		Timeout:  timeout,
		Logger:   logger,
		client:   client,
	}, nil
}

// NotifyModuleEvent fans the event out to every configured webhook and
// waits for the slowest delivery.
func (n *Notifier) NotifyModuleEvent(ctx context.Context, event *utils.ModuleEvent) {
	if n == nil || len(n.Webhooks) == 0 {
		return
	}
	body, err := sonic.Marshal(event)
	if err != nil {
		n.Logger.Errorf("Failed to marshal module event for %s: %v", event.Identifier, err)
		return
	}

	var wg sync.WaitGroup
	for _, webhook := range n.Webhooks {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			n.post(ctx, u, body)
		}(webhook)
	}
	wg.Wait()
}

func (n *Notifier) post(ctx context.Context, uri string, body []byte) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(uri)
	req.Header.SetContentType("application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("CKAN-Registry/%s", ckanVersion.Version))
	req.SetBody(body)

	timeout := n.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	errCh := make(chan error, 1)
	go func() { errCh <- n.client.DoTimeout(req, resp, timeout) }()

	select {
	case <-ctx.Done():
		n.Logger.Warnf("Webhook call to %s cancelled: %v", uri, ctx.Err())
		return
	case err := <-errCh:
		if err != nil {
			n.Logger.Errorf("Webhook call to %s failed: %v", uri, err)
			return
		}
	}

	if resp.StatusCode() == fasthttp.StatusOK {
		n.Logger.Infof("Delivered module event to %s", uri)
	} else {
		n.Logger.Errorf("Webhook %s answered status code: %d", uri, resp.StatusCode())
	}
}
