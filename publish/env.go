package publish

import (
	"context"
	"os"

	"github.com/evergreen-ci/deadline"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
)

// EnvLookup looks up a process environment variable.
type EnvLookup func(key string) (string, bool)

// EnvVarsCollector copies allow-listed environment variables into the
// environment of farm jobs.
type EnvVarsCollector struct {
	name   string
	conf   deadline.EnvVarsConfig
	lookup EnvLookup
	logger grip.Journaler
}

func newEnvVarsCollector(name string, conf deadline.EnvVarsConfig, lookup EnvLookup, logger grip.Journaler) *EnvVarsCollector {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if logger == nil {
		logger = logging.MakeGrip(grip.GetSender())
	}
	return &EnvVarsCollector{name: name, conf: conf, lookup: lookup, logger: logger}
}

// NewJobEnvVarsCollector collects the pipeline environment of farm jobs.
func NewJobEnvVarsCollector(conf deadline.JobEnvVarsConfig, lookup EnvLookup, logger grip.Journaler) *EnvVarsCollector {
	return newEnvVarsCollector(deadline.CollectJobEnvVarsPlugin, conf.EnvVarsConfig, lookup, logger)
}

// NewServerURLCollector hands the pipeline server URL and API key to farm
// jobs.
func NewServerURLCollector(conf deadline.ServerURLToJobConfig, lookup EnvLookup, logger grip.Journaler) *EnvVarsCollector {
	return newEnvVarsCollector(deadline.CollectServerURLToJobPlugin, conf.EnvVarsConfig, lookup, logger)
}

func (c *EnvVarsCollector) Name() string { return c.name }

func (c *EnvVarsCollector) ProcessContext(_ context.Context, pctx *Context) error {
	if !c.conf.IsEnabled() {
		return nil
	}
	if c.conf.Optional && pctx.pluginDisabled(c.name) {
		c.logger.Debug(message.Fields{
			"message": "optional collector turned off",
			"plugin":  c.name,
		})
		return nil
	}
	if !pctx.hasFarmInstances() {
		return nil
	}

	env := map[string]string{}
	for _, key := range c.conf.EnvKeys {
		if value, ok := c.lookup(key); ok && value != "" {
			env[key] = value
		}
	}
	c.logger.Debug(message.Fields{
		"message": "setting job environment",
		"plugin":  c.name,
		"keys":    len(env),
	})

	pctx.mergeJobEnvironment(env)
	return nil
}
