package util

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const httpClientTimeout = 5 * time.Minute

// clientPools holds reusable clients per bearer token. Plain clients live
// under the empty token.
type clientPools struct {
	mu    sync.Mutex
	pools map[string]*sync.Pool
}

var httpClients = &clientPools{pools: map[string]*sync.Pool{}}

func (p *clientPools) get(token string) *http.Client {
	p.mu.Lock()
	pool, ok := p.pools[token]
	if !ok {
		pool = &sync.Pool{New: func() interface{} { return newPooledClient(token) }}
		p.pools[token] = pool
	}
	p.mu.Unlock()

	return pool.Get().(*http.Client)
}

func (p *clientPools) put(token string, c *http.Client) {
	p.mu.Lock()
	pool, ok := p.pools[token]
	p.mu.Unlock()

	if ok {
		pool.Put(c)
	}
}

func newPooledClient(token string) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DisableKeepAlives:   true,
		IdleConnTimeout:     20 * time.Second,
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        50,
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if token != "" {
		transport = &oauth2.Transport{
			Base:   transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		}
	}
	return &http.Client{Timeout: httpClientTimeout, Transport: transport}
}

// GetHTTPClient returns a pooled client. Return it with PutHTTPClient.
func GetHTTPClient() *http.Client { return httpClients.get("") }

// GetOAuth2HTTPClient returns a pooled client that sends the token as a
// bearer authorization header.
func GetOAuth2HTTPClient(token string) (*http.Client, error) {
	if token == "" {
		return nil, errors.New("oauth token cannot be empty")
	}
	return httpClients.get(token), nil
}

// PutHTTPClient returns a client to the pool it was taken from, stripping
// the retrying transport first. Clients that came from no pool are
// dropped.
func PutHTTPClient(c *http.Client) {
	if retrying, ok := c.Transport.(*rehttp.Transport); ok {
		c.Transport = retrying.RoundTripper
	}
	c.Timeout = httpClientTimeout

	switch transport := c.Transport.(type) {
	case *http.Transport:
		httpClients.put("", c)
	case *oauth2.Transport:
		token, err := transport.Source.Token()
		if err != nil {
			return
		}
		httpClients.put(token.AccessToken, c)
	}
}

type HTTPRetryConfiguration struct {
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	MaxRetries      int
	TemporaryErrors bool
	Methods         []string
	Statuses        []int
}

// NewDefaultHTTPRetryConf retries idempotent reads on server side failures.
func NewDefaultHTTPRetryConf(maxRetries int) HTTPRetryConfiguration {
	return HTTPRetryConfiguration{
		MaxRetries:      maxRetries,
		TemporaryErrors: true,
		MaxDelay:        5 * time.Second,
		BaseDelay:       50 * time.Millisecond,
		Methods: []string{
			http.MethodGet,
			http.MethodHead,
		},
		Statuses: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// WrapRetryable replaces the transport of the client with a retrying one.
// A configuration without retries leaves the client as it is.
func WrapRetryable(client *http.Client, conf HTTPRetryConfiguration) *http.Client {
	if conf.MaxRetries <= 0 {
		return client
	}

	statusRetries := []rehttp.RetryFn{}
	if len(conf.Statuses) > 0 {
		statusRetries = append(statusRetries, rehttp.RetryStatuses(conf.Statuses...))
	} else {
		conf.TemporaryErrors = true
	}

	if conf.TemporaryErrors {
		statusRetries = append(statusRetries, rehttp.RetryTemporaryErr())
	}

	retryFns := []rehttp.RetryFn{rehttp.RetryAny(statusRetries...)}

	if len(conf.Methods) > 0 {
		retryFns = append(retryFns, rehttp.RetryHTTPMethods(conf.Methods...))
	}

	retryFns = append(retryFns, rehttp.RetryMaxRetries(conf.MaxRetries))

	client.Transport = rehttp.NewTransport(client.Transport,
		rehttp.RetryAll(retryFns...),
		rehttp.ExpJitterDelay(conf.BaseDelay, conf.MaxDelay))

	return client
}
