package farm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/util"
	"github.com/mitchellh/mapstructure"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Client lists resources of farm web services. Each call issues exactly one
// GET request, apart from transport level retries a server is configured
// for.
type Client struct {
	logger grip.Journaler
}

// NewClient returns a client that logs to the given journaler, or to the
// global grip sender when it is nil.
func NewClient(logger grip.Journaler) *Client {
	if logger == nil {
		logger = logging.MakeGrip(grip.GetSender())
	}
	return &Client{logger: logger}
}

// Get lists the resources of one kind on the server. A server that cannot be
// reached, or does not answer within its timeout, yields a
// *deadline.WebserviceError; a canceled caller context does not. An
// unsuccessful response is logged and yields an empty list without an error.
func (c *Client) Get(ctx context.Context, server deadline.ServerConfig, kind ResourceKind) ([]string, error) {
	if err := kind.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	endpoint := server.Endpoint(kind.Path())

	parent := ctx
	if server.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, server.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating request for '%s'", endpoint)
	}
	req.Header.Add("Accept", "application/json")
	if server.HasBasicAuth() {
		req.SetBasicAuth(server.DefaultUsername, server.DefaultPassword)
	}

	client, err := c.httpClient(server)
	if err != nil {
		return nil, errors.Wrapf(err, "creating HTTP client for server '%s'", server.Name)
	}
	defer util.PutHTTPClient(client)

	resp, err := client.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, errors.Wrapf(parent.Err(), "listing %s of server '%s'", kind, server.Name)
		}
		c.logger.Error(message.WrapError(err, message.Fields{
			"message":  "cannot connect to farm web service",
			"server":   server.Name,
			"endpoint": endpoint,
			"kind":     kind,
		}))
		return nil, &deadline.WebserviceError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warning(message.Fields{
			"message":  fmt.Sprintf("no %s retrieved", kind),
			"server":   server.Name,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return []string{}, nil
	}

	names, err := c.decodeNames(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s from '%s'", kind, endpoint)
	}

	c.logger.Debug(message.Fields{
		"message": fmt.Sprintf("retrieved %s", kind),
		"server":  server.Name,
		"count":   len(names),
	})

	return names, nil
}

func (c *Client) httpClient(server deadline.ServerConfig) (*http.Client, error) {
	var client *http.Client
	if server.APIToken != "" {
		var err error
		client, err = util.GetOAuth2HTTPClient(server.APIToken)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	} else {
		client = util.GetHTTPClient()
	}

	return util.WrapRetryable(client, util.NewDefaultHTTPRetryConf(server.MaxRetries)), nil
}

type namedItem struct {
	Name string `mapstructure:"name"`
}

// decodeNames reads a JSON array of names or of objects carrying a name
// field. Entries without a usable name are skipped.
func (c *Client) decodeNames(body io.Reader) ([]string, error) {
	var items []interface{}
	if err := util.ReadJSONInto(body, &items); err != nil {
		return nil, errors.Wrap(err, "decoding JSON array")
	}

	names := make([]string, 0, len(items))
	for idx, item := range items {
		switch value := item.(type) {
		case string:
			names = append(names, value)
		case map[string]interface{}:
			var named namedItem
			if err := mapstructure.WeakDecode(value, &named); err != nil || named.Name == "" {
				c.logger.Debug(message.Fields{
					"message": "skipping farm resource without a name",
					"index":   idx,
				})
				continue
			}
			names = append(names, named.Name)
		default:
			c.logger.Debug(message.Fields{
				"message": "skipping farm resource of unexpected type",
				"index":   idx,
				"type":    fmt.Sprintf("%T", item),
			})
		}
	}

	return names, nil
}
