// Package addon ties the settings, the farm server info cache and the publish
// plugins together.
package addon

import (
	"context"
	"path/filepath"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/farm"
	"github.com/evergreen-ci/deadline/publish"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const Name = "deadline"

type Addon struct {
	settings *deadline.Settings
	servers  map[string]deadline.ServerConfig
	enabled  bool
	cache    *farm.ServerInfoCache
	logger   grip.Journaler
}

// New creates the addon. Without configured servers the addon is disabled.
func New(settings *deadline.Settings, logger grip.Journaler) *Addon {
	if logger == nil {
		logger = logging.MakeGrip(grip.GetSender())
	}
	if settings == nil {
		settings = &deadline.Settings{}
	}

	a := &Addon{
		settings: settings,
		servers:  make(map[string]deadline.ServerConfig, len(settings.Servers)),
		logger:   logger,
	}
	for _, server := range settings.Servers {
		a.servers[server.Name] = server
	}
	a.enabled = len(a.servers) > 0
	logger.WarningWhen(!a.enabled, "farm web service URLs are not specified, disabling addon")

	a.cache = farm.NewServerInfoCache(farm.ClientFetchers(farm.NewClient(logger), a.Server))
	return a
}

func (a *Addon) Enabled() bool { return a.enabled }

func (a *Addon) Settings() *deadline.Settings { return a.settings }

// Server returns the configuration of the named server.
func (a *Addon) Server(name string) (deadline.ServerConfig, bool) {
	server, ok := a.servers[name]
	return server, ok
}

// ServerNames lists the configured servers in configuration order.
func (a *Addon) ServerNames() []string {
	return a.settings.Servers.Names()
}

// DefaultServer is the first configured server.
func (a *Addon) DefaultServer() string {
	names := a.ServerNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (a *Addon) checkServer(name string) error {
	if _, ok := a.servers[name]; !ok {
		return errors.Errorf("farm server '%s' is not configured", name)
	}
	return nil
}

func (a *Addon) list(ctx context.Context, kind farm.ResourceKind, server string) ([]string, error) {
	if err := a.checkServer(server); err != nil {
		return nil, err
	}
	return a.cache.Get(ctx, kind, server)
}

func (a *Addon) Pools(ctx context.Context, server string) ([]string, error) {
	return a.list(ctx, farm.Pools, server)
}

func (a *Addon) Groups(ctx context.Context, server string) ([]string, error) {
	return a.list(ctx, farm.Groups, server)
}

func (a *Addon) LimitGroups(ctx context.Context, server string) ([]string, error) {
	return a.list(ctx, farm.LimitGroups, server)
}

func (a *Addon) Machines(ctx context.Context, server string) ([]string, error) {
	return a.list(ctx, farm.Machines, server)
}

// ServerInfo returns every resource list of the server. It fails on the
// first list that cannot be fetched.
func (a *Addon) ServerInfo(ctx context.Context, server string) (map[farm.ResourceKind][]string, error) {
	out := map[farm.ResourceKind][]string{}
	for _, kind := range farm.ResourceKinds {
		names, err := a.list(ctx, kind, server)
		if err != nil {
			return nil, err
		}
		out[kind] = names
	}
	return out, nil
}

// PublishPluginPaths returns the directories holding the publish plugins
// shared by all hosts and, when a host is given, those of the host.
func (a *Addon) PublishPluginPaths(root, host string) []string {
	publishDir := filepath.Join(root, "plugins", "publish")
	paths := []string{filepath.Join(publishDir, "global")}
	if host != "" {
		paths = append(paths, filepath.Join(publishDir, host))
	}
	return paths
}

// ContextPlugins returns the context collectors configured in the settings.
func (a *Addon) ContextPlugins(lookup publish.EnvLookup) []publish.ContextPlugin {
	return []publish.ContextPlugin{
		publish.NewJobEnvVarsCollector(a.settings.Publish.JobEnvVars, lookup, a.logger),
		publish.NewServerURLCollector(a.settings.Publish.ServerURLToJob, lookup, a.logger),
	}
}

func (a *Addon) JobInfoCollector() *publish.JobInfoCollector {
	return publish.NewJobInfoCollector(a.settings.Publish.JobInfo, a, a.DefaultServer(), a.logger)
}

func (a *Addon) InstancePlugins() []publish.InstancePlugin {
	return []publish.InstancePlugin{a.JobInfoCollector()}
}

// Publish runs a publish pass with every plugin of the addon.
func (a *Addon) Publish(ctx context.Context, pctx *publish.Context, lookup publish.EnvLookup) (*publish.Result, error) {
	if !a.enabled {
		return nil, errors.New("addon is disabled")
	}

	res := publish.Run(ctx, pctx, a.ContextPlugins(lookup), a.InstancePlugins())
	a.logger.Info(message.Fields{
		"message":   "publish pass finished",
		"host":      pctx.HostName,
		"project":   pctx.ProjectName,
		"processed": len(res.Processed),
		"failed":    res.FailedInstances(),
	})
	return res, nil
}
