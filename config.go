package deadline

import (
	"os"
	"reflect"

	"github.com/evergreen-ci/deadline/profile"
	"github.com/mitchellh/mapstructure"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigSection is one independently validated part of the settings.
type ConfigSection interface {
	// SectionId returns the key of the section in the settings document.
	SectionId() string
	// ValidateAndDefault checks the section and fills in unset values.
	ValidateAndDefault() error
}

// Settings holds the project settings of the farm integration as the host
// hands them over: the configured farm servers and per-plugin publish
// settings.
type Settings struct {
	Servers ServersConfig `json:"deadline_urls" yaml:"deadline_urls" mapstructure:"deadline_urls"`
	Publish PublishConfig `json:"publish" yaml:"publish" mapstructure:"publish"`

	LoadedFrom string `json:"-" yaml:"-" mapstructure:"-"`
}

// PublishConfig holds the settings of each publish plugin, keyed by plugin
// name.
type PublishConfig struct {
	JobInfo        JobInfoConfig        `json:"CollectJobInfo" yaml:"CollectJobInfo" mapstructure:"CollectJobInfo"`
	JobEnvVars     JobEnvVarsConfig     `json:"CollectDeadlineJobEnvVars" yaml:"CollectDeadlineJobEnvVars" mapstructure:"CollectDeadlineJobEnvVars"`
	ServerURLToJob ServerURLToJobConfig `json:"CollectAYONServerUrlToFarmJob" yaml:"CollectAYONServerUrlToFarmJob" mapstructure:"CollectAYONServerUrlToFarmJob"`
}

// NewSettings reads settings from a YAML file.
func NewSettings(fn string) (*Settings, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", fn)
	}

	settings := &Settings{}
	if err = yaml.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "reading YAML data from settings file '%s'", fn)
	}
	settings.LoadedFrom = fn

	if err = settings.ValidateAndDefault(); err != nil {
		return nil, errors.Wrapf(err, "validating settings file '%s'", fn)
	}

	return settings, nil
}

// NewSettingsFromMap decodes settings handed over by the host as untyped
// data, e.g. parsed project settings JSON. Scalars are weakly converted, so a
// single string may stand in for a list and numbers may arrive as strings.
func NewSettingsFromMap(in map[string]interface{}) (*Settings, error) {
	settings := &Settings{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			profile.ValuesDecodeHook(),
		),
		WeaklyTypedInput: true,
		Result:           settings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating settings decoder")
	}
	if err = decoder.Decode(in); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}

	if err = settings.ValidateAndDefault(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	return settings, nil
}

// Sections returns the config sections of the settings. The sections point
// into the settings, so defaults applied to them are kept.
func (s *Settings) Sections() ConfigSections {
	sections := []ConfigSection{
		&s.Servers,
		&s.Publish.JobInfo,
		&s.Publish.JobEnvVars,
		&s.Publish.ServerURLToJob,
	}

	sectionMap := make(map[string]ConfigSection, len(sections))
	order := make([]string, 0, len(sections))
	for _, section := range sections {
		sectionMap[section.SectionId()] = section
		order = append(order, section.SectionId())
	}
	return ConfigSections{Sections: sectionMap, order: order}
}

func (s *Settings) ValidateAndDefault() error {
	sections := s.Sections()
	return sections.ValidateAndDefault()
}

// Server returns the configuration of the named farm server.
func (s *Settings) Server(name string) (ServerConfig, bool) {
	return s.Servers.Get(name)
}

type ConfigSections struct {
	Sections map[string]ConfigSection
	order    []string
}

// ValidateAndDefault validates every section in order and reports the
// errors of all sections at once.
func (c *ConfigSections) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	for _, id := range c.order {
		section := c.Sections[id]
		if section == nil || reflect.ValueOf(section).IsNil() {
			catcher.Errorf("config section '%s' is missing", id)
			continue
		}
		catcher.Wrapf(section.ValidateAndDefault(), "invalid config section '%s'", id)
	}
	return catcher.Resolve()
}
