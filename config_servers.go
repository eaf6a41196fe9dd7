package deadline

import (
	"net/url"
	"strings"
	"time"

	"github.com/mongodb/grip"
)

// ServerConfig describes one farm web service. The URL key is called "value"
// in the settings documents.
type ServerConfig struct {
	Name            string        `json:"name" yaml:"name" mapstructure:"name"`
	URL             string        `json:"value" yaml:"value" mapstructure:"value"`
	DefaultUsername string        `json:"default_username" yaml:"default_username" mapstructure:"default_username"`
	DefaultPassword string        `json:"default_password" yaml:"default_password" mapstructure:"default_password"`
	APIToken        string        `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	MaxRetries      int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries"`
}

// HasBasicAuth reports whether requests to the server carry basic auth
// credentials.
func (c ServerConfig) HasBasicAuth() bool { return c.DefaultUsername != "" }

// Endpoint joins the server URL with an API path.
func (c ServerConfig) Endpoint(path string) string {
	return strings.TrimRight(c.URL, "/") + path
}

func (c *ServerConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	c.Name = strings.TrimSpace(c.Name)
	c.URL = strings.TrimSpace(c.URL)
	catcher.NewWhen(c.Name == "", "server name must not be empty")
	catcher.ErrorfWhen(c.URL == "", "server '%s' must have a URL", c.Name)
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			catcher.Wrapf(err, "parsing URL of server '%s'", c.Name)
		} else {
			catcher.ErrorfWhen(u.Scheme != "http" && u.Scheme != "https", "URL of server '%s' must use http or https, not '%s'", c.Name, u.Scheme)
			catcher.ErrorfWhen(u.Host == "", "URL of server '%s' has no host", c.Name)
		}
	}
	catcher.ErrorfWhen(c.Timeout < 0, "timeout of server '%s' must not be negative", c.Name)
	catcher.ErrorfWhen(c.MaxRetries < 0, "max retries of server '%s' must not be negative", c.Name)
	catcher.ErrorfWhen(c.DefaultUsername == "" && c.DefaultPassword != "", "server '%s' has a password but no username", c.Name)

	if c.Timeout == 0 {
		c.Timeout = DefaultServerTimeout
	}

	return catcher.Resolve()
}

// ServersConfig is the ordered list of configured farm servers.
type ServersConfig []ServerConfig

func (*ServersConfig) SectionId() string { return "deadline_urls" }

func (c *ServersConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	seen := map[string]bool{}
	for i := range *c {
		server := &(*c)[i]
		catcher.Wrapf(server.ValidateAndDefault(), "invalid server at index %d", i)
		if server.Name == "" {
			continue
		}
		catcher.ErrorfWhen(seen[server.Name], "server name '%s' is duplicated", server.Name)
		seen[server.Name] = true
	}
	return catcher.Resolve()
}

// Get returns the server with the given name.
func (c ServersConfig) Get(name string) (ServerConfig, bool) {
	for _, server := range c {
		if server.Name == name {
			return server, true
		}
	}
	return ServerConfig{}, false
}

// Names returns the server names in configuration order.
func (c ServersConfig) Names() []string {
	names := make([]string, 0, len(c))
	for _, server := range c {
		names = append(names, server.Name)
	}
	return names
}
