package deadline

import (
	"regexp"

	"github.com/evergreen-ci/deadline/profile"
	"github.com/evergreen-ci/deadline/util"
	"github.com/mongodb/grip"
)

// Fields of a job info profile that users may be allowed to override. The
// names double as attribute definition keys and as keys of user override
// values.
const (
	OverrideChunkSize            = "chunk_size"
	OverridePriority             = "priority"
	OverrideDepartment           = "department"
	OverrideLimitGroups          = "limit_groups"
	OverrideJobDelay             = "job_delay"
	OverridePrimaryPool          = "primary_pool"
	OverrideSecondaryPool        = "secondary_pool"
	OverrideGroup                = "group"
	OverrideMachineList          = "machine_list"
	OverrideMachineListDeny      = "machine_list_deny"
	OverrideConcurrentTasks      = "concurrent_tasks"
	OverridePublishJobState      = "publish_job_state"
	OverrideAdditionalJobInfo    = "additional_job_info"
	OverrideAdditionalPluginInfo = "additional_plugin_info"
)

// OverrideFields lists the overridable fields in the order their attribute
// definitions are shown.
var OverrideFields = []string{
	OverrideChunkSize,
	OverridePriority,
	OverrideDepartment,
	OverrideLimitGroups,
	OverrideJobDelay,
	OverridePrimaryPool,
	OverrideSecondaryPool,
	OverrideGroup,
	OverrideMachineList,
	OverrideMachineListDeny,
	OverrideConcurrentTasks,
	OverridePublishJobState,
	OverrideAdditionalJobInfo,
	OverrideAdditionalPluginInfo,
}

// Host specific job options.
const (
	OverrideTilePriority        = "tile_priority"
	OverrideStrictErrorChecking = "strict_error_checking"
)

var jobDelayPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}:\d{2}$`)

// ValidJobDelay reports whether the delay is written as a dd:hh:mm:ss
// timecode.
func ValidJobDelay(delay string) bool {
	return jobDelayPattern.MatchString(delay)
}

// JobInfoProfile pairs a context filter with job defaults and the set of
// fields users may override.
type JobInfoProfile struct {
	HostNames profile.Values `json:"host_names" yaml:"host_names" mapstructure:"host_names"`
	TaskTypes profile.Values `json:"task_types" yaml:"task_types" mapstructure:"task_types"`
	TaskNames profile.Values `json:"task_names" yaml:"task_names" mapstructure:"task_names"`

	ChunkSize            int      `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`
	Priority             *int     `json:"priority" yaml:"priority" mapstructure:"priority"`
	Department           string   `json:"department" yaml:"department" mapstructure:"department"`
	LimitGroups          []string `json:"limit_groups" yaml:"limit_groups" mapstructure:"limit_groups"`
	JobDelay             string   `json:"job_delay" yaml:"job_delay" mapstructure:"job_delay"`
	PrimaryPool          string   `json:"primary_pool" yaml:"primary_pool" mapstructure:"primary_pool"`
	SecondaryPool        string   `json:"secondary_pool" yaml:"secondary_pool" mapstructure:"secondary_pool"`
	Group                string   `json:"group" yaml:"group" mapstructure:"group"`
	MachineList          []string `json:"machine_list" yaml:"machine_list" mapstructure:"machine_list"`
	MachineListDeny      bool     `json:"machine_list_deny" yaml:"machine_list_deny" mapstructure:"machine_list_deny"`
	ConcurrentTasks      int      `json:"concurrent_tasks" yaml:"concurrent_tasks" mapstructure:"concurrent_tasks"`
	PublishJobState      string   `json:"publish_job_state" yaml:"publish_job_state" mapstructure:"publish_job_state"`
	AdditionalJobInfo    string   `json:"additional_job_info" yaml:"additional_job_info" mapstructure:"additional_job_info"`
	AdditionalPluginInfo string   `json:"additional_plugin_info" yaml:"additional_plugin_info" mapstructure:"additional_plugin_info"`

	Overrides []string `json:"overrides" yaml:"overrides" mapstructure:"overrides"`
}

func (p JobInfoProfile) FilterCriteria() profile.Criteria {
	return profile.Criteria{
		HostNames: p.HostNames,
		TaskTypes: p.TaskTypes,
		TaskNames: p.TaskNames,
	}
}

// AllowsOverride reports whether users may override the field.
func (p JobInfoProfile) AllowsOverride(field string) bool {
	return util.StringSliceContains(p.Overrides, field)
}

// PriorityValue returns the configured priority or the default.
func (p JobInfoProfile) PriorityValue() int {
	if p.Priority == nil {
		return DefaultPriority
	}
	return *p.Priority
}

func (p *JobInfoProfile) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()

	if p.ChunkSize == 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.ConcurrentTasks == 0 {
		p.ConcurrentTasks = 1
	}
	if p.Priority == nil {
		priority := DefaultPriority
		p.Priority = &priority
	}
	if len(p.LimitGroups) > 0 {
		p.LimitGroups = util.UniqueStrings(util.SplitCommas(p.LimitGroups))
	}
	if len(p.MachineList) > 0 {
		p.MachineList = util.UniqueStrings(util.SplitCommas(p.MachineList))
	}

	catcher.ErrorfWhen(p.ChunkSize < MinChunkSize || p.ChunkSize > MaxChunkSize, "chunk size %d is not between %d and %d", p.ChunkSize, MinChunkSize, MaxChunkSize)
	catcher.ErrorfWhen(*p.Priority < MinPriority || *p.Priority > MaxPriority, "priority %d is not between %d and %d", *p.Priority, MinPriority, MaxPriority)
	catcher.ErrorfWhen(p.ConcurrentTasks < 1, "concurrent tasks must be positive")
	catcher.ErrorfWhen(p.JobDelay != "" && !ValidJobDelay(p.JobDelay), "job delay '%s' is not a dd:hh:mm:ss timecode", p.JobDelay)
	catcher.ErrorfWhen(p.PublishJobState != "" && p.PublishJobState != PublishJobStateActive && p.PublishJobState != PublishJobStateSuspended,
		"publish job state '%s' must be '%s' or '%s'", p.PublishJobState, PublishJobStateActive, PublishJobStateSuspended)

	for _, field := range p.Overrides {
		catcher.ErrorfWhen(!util.StringSliceContains(OverrideFields, field), "field '%s' cannot be overridden", field)
	}
	p.Overrides = util.UniqueStrings(p.Overrides)

	return catcher.Resolve()
}

// HostJobDefaults are defaults of options that only some hosts expose.
type HostJobDefaults struct {
	TilePriority        int  `json:"tile_priority" yaml:"tile_priority" mapstructure:"tile_priority"`
	StrictErrorChecking bool `json:"strict_error_checking" yaml:"strict_error_checking" mapstructure:"strict_error_checking"`
}

// JobInfoConfig holds the settings of the job info collector.
type JobInfoConfig struct {
	Profiles               []JobInfoProfile           `json:"profiles" yaml:"profiles" mapstructure:"profiles"`
	SkipPublishJobFamilies []string                   `json:"skip_publish_job_families" yaml:"skip_publish_job_families" mapstructure:"skip_publish_job_families"`
	HostDefaults           map[string]HostJobDefaults `json:"host_defaults" yaml:"host_defaults" mapstructure:"host_defaults"`
}

func (*JobInfoConfig) SectionId() string { return CollectJobInfoPlugin }

func (c *JobInfoConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	for i := range c.Profiles {
		catcher.Wrapf(c.Profiles[i].ValidateAndDefault(), "invalid profile at index %d", i)
	}

	if c.SkipPublishJobFamilies == nil {
		c.SkipPublishJobFamilies = append([]string{}, DefaultSkipPublishJobFamilies...)
	}
	if c.HostDefaults == nil {
		c.HostDefaults = map[string]HostJobDefaults{
			"maya": {TilePriority: DefaultPriority, StrictErrorChecking: true},
		}
	}
	for host, defaults := range c.HostDefaults {
		catcher.ErrorfWhen(defaults.TilePriority < MinPriority || defaults.TilePriority > MaxPriority,
			"tile priority %d of host '%s' is not between %d and %d", defaults.TilePriority, host, MinPriority, MaxPriority)
	}

	return catcher.Resolve()
}

// ResolveProfile returns the first profile matching the context.
func (c *JobInfoConfig) ResolveProfile(ctx profile.Context) (JobInfoProfile, bool) {
	return profile.Filter(c.Profiles, ctx)
}
