package publish

import (
	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/jobinfo"
	"github.com/evergreen-ci/deadline/profile"
	"github.com/evergreen-ci/deadline/util"
)

// Instance is one publishable item of the host scene.
type Instance struct {
	Name       string   `json:"name" yaml:"name"`
	Active     bool     `json:"active" yaml:"active"`
	Families   []string `json:"families" yaml:"families"`
	Task       string   `json:"task" yaml:"task"`
	TaskType   string   `json:"task_type" yaml:"task_type"`
	FolderPath string   `json:"folder_path" yaml:"folder_path"`

	Data map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`

	// AttrValues are the values users entered, keyed by plugin name and
	// then by attribute key.
	AttrValues map[string]map[string]interface{} `json:"attr_values,omitempty" yaml:"attr_values,omitempty"`

	attrDefs map[string][]jobinfo.AttributeDefinition
}

// PluginAttrValues returns the values entered for the plugin's attributes.
func (i *Instance) PluginAttrValues(plugin string) map[string]interface{} {
	return i.AttrValues[plugin]
}

func (i *Instance) PluginAttrDefs(plugin string) []jobinfo.AttributeDefinition {
	return i.attrDefs[plugin]
}

func (i *Instance) SetPluginAttrDefs(plugin string, defs []jobinfo.AttributeDefinition) {
	if i.attrDefs == nil {
		i.attrDefs = map[string][]jobinfo.AttributeDefinition{}
	}
	i.attrDefs[plugin] = defs
}

// AddFamilies appends the families the instance does not have yet.
func (i *Instance) AddFamilies(families ...string) {
	i.Families = util.UniqueStrings(append(i.Families, families...))
}

func (i *Instance) HasFamily(family string) bool {
	return util.StringSliceContains(i.Families, family)
}

func (i *Instance) setData(key string, value interface{}) {
	if i.Data == nil {
		i.Data = map[string]interface{}{}
	}
	i.Data[key] = value
}

// JobDescriptor returns the descriptor collected for the instance.
func (i *Instance) JobDescriptor() (*jobinfo.Descriptor, bool) {
	d, ok := i.Data[deadline.JobInfoDataKey].(*jobinfo.Descriptor)
	return d, ok
}

// Context is the shared state of one publish pass.
type Context struct {
	HostName    string `json:"host_name" yaml:"host_name"`
	ProjectName string `json:"project_name" yaml:"project_name"`

	// DisabledPlugins lists optional plugins users turned off.
	DisabledPlugins []string `json:"disabled_plugins,omitempty" yaml:"disabled_plugins,omitempty"`

	Data      map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Instances []*Instance            `json:"instances" yaml:"instances"`
}

func (c *Context) profileContext(i *Instance) profile.Context {
	return profile.Context{
		HostName: c.HostName,
		TaskType: i.TaskType,
		TaskName: i.Task,
	}
}

// JobEnvironment returns the environment collected for farm jobs.
func (c *Context) JobEnvironment() map[string]string {
	out := map[string]string{}
	switch env := c.Data[deadline.JobEnvDataKey].(type) {
	case map[string]string:
		for key, value := range env {
			out[key] = value
		}
	case map[string]interface{}:
		for key, value := range env {
			if s, ok := value.(string); ok {
				out[key] = s
			}
		}
	}
	return out
}

// mergeJobEnvironment adds the entries to the collected environment,
// replacing existing values of the same keys.
func (c *Context) mergeJobEnvironment(env map[string]string) {
	merged := c.JobEnvironment()
	for key, value := range env {
		merged[key] = value
	}
	if c.Data == nil {
		c.Data = map[string]interface{}{}
	}
	c.Data[deadline.JobEnvDataKey] = merged
}

// ServerName returns the farm server chosen for the instance, falling back
// to the one chosen for the whole publish.
func (c *Context) ServerName(i *Instance) string {
	if name, ok := i.Data[deadline.ServerDataKey].(string); ok && name != "" {
		return name
	}
	if name, ok := c.Data[deadline.ServerDataKey].(string); ok {
		return name
	}
	return ""
}

func (c *Context) pluginDisabled(name string) bool {
	return util.StringSliceContains(c.DisabledPlugins, name)
}

func (c *Context) hasFarmInstances() bool {
	for _, i := range c.Instances {
		if i.Active && jobinfo.IsFarmInstance(i.Families) {
			return true
		}
	}
	return false
}
