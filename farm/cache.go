package farm

import (
	"context"
	"strings"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/util"
	"github.com/evergreen-ci/deadline/util/cache"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// FetchFunc lists the resources of one kind on the named server.
type FetchFunc func(ctx context.Context, serverName string) ([]string, error)

// ServerInfoCache memoizes resource lists per server and kind. The first
// successful lookup of a (server, kind) pair is kept for the lifetime of the
// cache; failed lookups are not cached. Concurrent lookups of the same pair
// share a single fetch.
type ServerInfoCache struct {
	fetchers map[ResourceKind]FetchFunc
	values   *cache.Cache[[]string]
	inflight singleflight.Group
}

// NewServerInfoCache creates a cache that fills itself with the given fetch
// functions.
func NewServerInfoCache(fetchers map[ResourceKind]FetchFunc) *ServerInfoCache {
	copied := make(map[ResourceKind]FetchFunc, len(fetchers))
	for kind, fetch := range fetchers {
		copied[kind] = fetch
	}
	return &ServerInfoCache{
		fetchers: copied,
		values:   cache.New[[]string](),
	}
}

// ServerLookup resolves a configured server by name.
type ServerLookup func(name string) (deadline.ServerConfig, bool)

// ClientFetchers returns fetch functions for every kind that query servers
// through the client.
func ClientFetchers(client *Client, lookup ServerLookup) map[ResourceKind]FetchFunc {
	fetchers := make(map[ResourceKind]FetchFunc, len(ResourceKinds))
	for _, kind := range ResourceKinds {
		kind := kind
		fetchers[kind] = func(ctx context.Context, serverName string) ([]string, error) {
			server, ok := lookup(serverName)
			if !ok {
				return nil, errors.Errorf("farm server '%s' is not configured", serverName)
			}
			return client.Get(ctx, server, kind)
		}
	}
	return fetchers
}

// Kinds never contain the separator, so the server name is recovered by
// splitting at its first occurrence.
const keySeparator = "/"

func cacheKey(kind ResourceKind, serverName string) string {
	return string(kind) + keySeparator + serverName
}

// Get returns the resources of one kind for the server, fetching them on
// first use. Callers get their own copy of the list.
func (c *ServerInfoCache) Get(ctx context.Context, kind ResourceKind, serverName string) ([]string, error) {
	if err := kind.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	key := cacheKey(kind, serverName)
	if values, ok := c.values.Get(key); ok {
		return util.CopyStrings(values), nil
	}

	fetch, ok := c.fetchers[kind]
	if !ok || fetch == nil {
		return nil, errors.Errorf("no fetcher for farm resource kind '%s'", kind)
	}

	result, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		if values, ok := c.values.Get(key); ok {
			return values, nil
		}

		values, err := fetch(ctx, serverName)
		if err != nil {
			return nil, err
		}
		return c.values.PutIfAbsent(key, util.CopyStrings(values)), nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s of farm server '%s'", kind, serverName)
	}

	return util.CopyStrings(result.([]string)), nil
}

func (c *ServerInfoCache) Pools(ctx context.Context, serverName string) ([]string, error) {
	return c.Get(ctx, Pools, serverName)
}

func (c *ServerInfoCache) Groups(ctx context.Context, serverName string) ([]string, error) {
	return c.Get(ctx, Groups, serverName)
}

func (c *ServerInfoCache) LimitGroups(ctx context.Context, serverName string) ([]string, error) {
	return c.Get(ctx, LimitGroups, serverName)
}

func (c *ServerInfoCache) Machines(ctx context.Context, serverName string) ([]string, error) {
	return c.Get(ctx, Machines, serverName)
}

// Snapshot returns the lists cached for the server without fetching
// anything.
func (c *ServerInfoCache) Snapshot(serverName string) map[ResourceKind][]string {
	out := map[ResourceKind][]string{}
	for _, key := range c.values.Keys() {
		kind, name, ok := strings.Cut(key, keySeparator)
		if !ok || name != serverName {
			continue
		}
		values, _ := c.values.Get(key)
		out[ResourceKind(kind)] = util.CopyStrings(values)
	}
	return out
}
