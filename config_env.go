package deadline

import (
	"regexp"

	"github.com/evergreen-ci/deadline/util"
	"github.com/mongodb/grip"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnvVarsConfig configures a collector that copies process environment
// variables into farm jobs.
type EnvVarsConfig struct {
	Enabled  *bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Optional bool     `json:"optional" yaml:"optional" mapstructure:"optional"`
	EnvKeys  []string `json:"env_keys" yaml:"env_keys" mapstructure:"env_keys"`
}

func (c EnvVarsConfig) IsEnabled() bool { return c.Enabled != nil && *c.Enabled }

func (c *EnvVarsConfig) validateAndDefault(enabled bool, keys []string) error {
	if c.Enabled == nil {
		c.Enabled = &enabled
	}
	if c.EnvKeys == nil {
		c.EnvKeys = append([]string{}, keys...)
	}
	c.EnvKeys = util.UniqueStrings(c.EnvKeys)

	catcher := grip.NewBasicCatcher()
	for _, key := range c.EnvKeys {
		catcher.ErrorfWhen(!envKeyPattern.MatchString(key), "'%s' is not a valid environment variable name", key)
	}
	return catcher.Resolve()
}

// JobEnvVarsConfig configures the collector of pipeline environment
// variables. It is enabled unless turned off.
type JobEnvVarsConfig struct {
	EnvVarsConfig `yaml:",inline" mapstructure:",squash"`
}

func (*JobEnvVarsConfig) SectionId() string { return CollectJobEnvVarsPlugin }

func (c *JobEnvVarsConfig) ValidateAndDefault() error {
	return c.validateAndDefault(true, DefaultJobEnvKeys)
}

// ServerURLToJobConfig configures the collector that hands the pipeline
// server URL and API key to farm jobs. It is disabled unless turned on.
type ServerURLToJobConfig struct {
	EnvVarsConfig `yaml:",inline" mapstructure:",squash"`
}

func (*ServerURLToJobConfig) SectionId() string { return CollectServerURLToJobPlugin }

func (c *ServerURLToJobConfig) ValidateAndDefault() error {
	return c.validateAndDefault(false, DefaultServerURLEnvKeys)
}
