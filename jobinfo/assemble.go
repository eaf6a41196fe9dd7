package jobinfo

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/util"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const maxConcurrentTasks = 16

// ResourceLister lists the named resources of a farm server. The farm
// server info cache implements it.
type ResourceLister interface {
	Pools(ctx context.Context, server string) ([]string, error)
	Groups(ctx context.Context, server string) ([]string, error)
	LimitGroups(ctx context.Context, server string) ([]string, error)
	Machines(ctx context.Context, server string) ([]string, error)
}

// Input is everything a descriptor is assembled from.
type Input struct {
	// Profile is the profile matching the instance context. Without one the
	// built in defaults apply and no user values are honored.
	Profile *deadline.JobInfoProfile

	// Overrides are the values users entered for the attribute
	// definitions, keyed by field name.
	Overrides map[string]interface{}

	Server       string
	Host         string
	HostDefaults map[string]deadline.HostJobDefaults
	Environment  map[string]string
}

// Assembler builds job descriptors, validating resource names against the
// farm.
type Assembler struct {
	Resources ResourceLister
	Logger    grip.Journaler
}

func NewAssembler(resources ResourceLister, logger grip.Journaler) *Assembler {
	if logger == nil {
		logger = logging.MakeGrip(grip.GetSender())
	}
	return &Assembler{Resources: resources, Logger: logger}
}

// userValues mirrors the overridable fields. Nil fields were not given.
type userValues struct {
	ChunkSize            *int      `mapstructure:"chunk_size"`
	Priority             *int      `mapstructure:"priority"`
	Department           *string   `mapstructure:"department"`
	LimitGroups          *[]string `mapstructure:"limit_groups"`
	JobDelay             *string   `mapstructure:"job_delay"`
	PrimaryPool          *string   `mapstructure:"primary_pool"`
	SecondaryPool        *string   `mapstructure:"secondary_pool"`
	Group                *string   `mapstructure:"group"`
	MachineList          *[]string `mapstructure:"machine_list"`
	MachineListDeny      *bool     `mapstructure:"machine_list_deny"`
	ConcurrentTasks      *int      `mapstructure:"concurrent_tasks"`
	PublishJobState      *string   `mapstructure:"publish_job_state"`
	AdditionalJobInfo    *string   `mapstructure:"additional_job_info"`
	AdditionalPluginInfo *string   `mapstructure:"additional_plugin_info"`

	TilePriority        *int  `mapstructure:"tile_priority"`
	StrictErrorChecking *bool `mapstructure:"strict_error_checking"`
}

func decodeUserValues(in map[string]interface{}) (userValues, error) {
	var out userValues
	if len(in) == 0 {
		return out, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, errors.Wrap(err, "creating decoder")
	}
	if err = decoder.Decode(in); err != nil {
		return out, errors.Wrap(err, "decoding user values")
	}
	return out, nil
}

// Build assembles the descriptor of one instance. User values replace
// profile defaults field by field, but only for the fields the profile
// allows. Pools, groups, limit groups and machines that the farm does not
// list are dropped.
func (a *Assembler) Build(ctx context.Context, in Input) (*Descriptor, error) {
	base := deadline.JobInfoProfile{}
	if in.Profile != nil {
		base = *in.Profile
	}
	if err := base.ValidateAndDefault(); err != nil {
		return nil, errors.Wrap(err, "invalid job info profile")
	}

	values, err := decodeUserValues(a.permittedValues(in, base))
	if err != nil {
		return nil, err
	}

	opts := mergeUserValues(base, values)

	catcher := grip.NewBasicCatcher()
	catcher.ErrorfWhen(opts.ChunkSize < deadline.MinChunkSize || opts.ChunkSize > deadline.MaxChunkSize,
		"chunk size %d is not between %d and %d", opts.ChunkSize, deadline.MinChunkSize, deadline.MaxChunkSize)
	catcher.ErrorfWhen(opts.PriorityValue() < deadline.MinPriority || opts.PriorityValue() > deadline.MaxPriority,
		"priority %d is not between %d and %d", opts.PriorityValue(), deadline.MinPriority, deadline.MaxPriority)
	catcher.ErrorfWhen(opts.ConcurrentTasks < 1, "concurrent tasks must be positive")
	catcher.ErrorfWhen(opts.JobDelay != "" && !deadline.ValidJobDelay(opts.JobDelay),
		"job delay '%s' is not a dd:hh:mm:ss timecode", opts.JobDelay)
	catcher.ErrorfWhen(opts.PublishJobState != "" && opts.PublishJobState != deadline.PublishJobStateActive &&
		opts.PublishJobState != deadline.PublishJobStateSuspended, "invalid publish job state '%s'", opts.PublishJobState)

	jobInfo, err := ParseAdditionalInfo(opts.AdditionalJobInfo)
	catcher.Wrap(err, "invalid additional job info")
	pluginInfo, err := ParseAdditionalInfo(opts.AdditionalPluginInfo)
	catcher.Wrap(err, "invalid additional plugin info")

	if catcher.HasErrors() {
		return nil, catcher.Resolve()
	}

	d := &Descriptor{
		ID:                   uuid.New().String(),
		Server:               in.Server,
		ChunkSize:            opts.ChunkSize,
		Priority:             opts.PriorityValue(),
		Department:           opts.Department,
		MachineListDeny:      opts.MachineListDeny,
		JobDelay:             opts.JobDelay,
		ConcurrentTasks:      opts.ConcurrentTasks,
		PublishJobState:      opts.PublishJobState,
		AdditionalJobInfo:    jobInfo,
		AdditionalPluginInfo: pluginInfo,
		Environment:          copyEnvironment(in.Environment),
	}
	if d.PublishJobState == "" {
		d.PublishJobState = deadline.PublishJobStateActive
	}

	if err := a.resolveResources(ctx, in.Server, opts, d); err != nil {
		return nil, err
	}

	if hostDefaults, ok := in.HostDefaults[in.Host]; ok {
		tilePriority := hostDefaults.TilePriority
		if values.TilePriority != nil {
			tilePriority = *values.TilePriority
		}
		strict := hostDefaults.StrictErrorChecking
		if values.StrictErrorChecking != nil {
			strict = *values.StrictErrorChecking
		}
		if tilePriority < deadline.MinPriority || tilePriority > deadline.MaxPriority {
			return nil, errors.Errorf("tile priority %d is not between %d and %d", tilePriority, deadline.MinPriority, deadline.MaxPriority)
		}
		d.TilePriority = &tilePriority
		d.StrictErrorChecking = &strict
	}

	return d, nil
}

// permittedValues drops the user values of fields that cannot be
// overridden before anything is decoded. Profile fields need a profile that
// lists them; host options need host defaults for the host.
func (a *Assembler) permittedValues(in Input, base deadline.JobInfoProfile) map[string]interface{} {
	_, hasHostOptions := in.HostDefaults[in.Host]
	out := make(map[string]interface{}, len(in.Overrides))
	for field, value := range in.Overrides {
		switch {
		case field == deadline.OverrideTilePriority || field == deadline.OverrideStrictErrorChecking:
			if hasHostOptions {
				out[field] = value
				continue
			}
		case in.Profile != nil && base.AllowsOverride(field):
			out[field] = value
			continue
		}
		a.Logger.Debug(message.Fields{
			"message": "ignoring value of a field that cannot be overridden",
			"field":   field,
			"host":    in.Host,
		})
	}
	return out
}

// mergeUserValues applies the decoded user values on top of the profile.
func mergeUserValues(base deadline.JobInfoProfile, values userValues) deadline.JobInfoProfile {
	out := base
	if values.ChunkSize != nil {
		out.ChunkSize = *values.ChunkSize
	}
	if values.Priority != nil {
		priority := *values.Priority
		out.Priority = &priority
	}
	if values.Department != nil {
		out.Department = *values.Department
	}
	if values.LimitGroups != nil {
		out.LimitGroups = splitNames(*values.LimitGroups)
	}
	if values.JobDelay != nil {
		out.JobDelay = strings.TrimSpace(*values.JobDelay)
	}
	if values.PrimaryPool != nil {
		out.PrimaryPool = *values.PrimaryPool
	}
	if values.SecondaryPool != nil {
		out.SecondaryPool = *values.SecondaryPool
	}
	if values.Group != nil {
		out.Group = *values.Group
	}
	if values.MachineList != nil {
		out.MachineList = splitNames(*values.MachineList)
	}
	if values.MachineListDeny != nil {
		out.MachineListDeny = *values.MachineListDeny
	}
	if values.ConcurrentTasks != nil {
		out.ConcurrentTasks = *values.ConcurrentTasks
	}
	if values.PublishJobState != nil {
		out.PublishJobState = *values.PublishJobState
	}
	if values.AdditionalJobInfo != nil {
		out.AdditionalJobInfo = *values.AdditionalJobInfo
	}
	if values.AdditionalPluginInfo != nil {
		out.AdditionalPluginInfo = *values.AdditionalPluginInfo
	}

	return out
}

// resolveResources keeps only the resource names the farm lists. An unset or
// unknown primary pool becomes "none", an unknown group falls back to the
// first group of the farm and an unknown secondary pool is left out.
func (a *Assembler) resolveResources(ctx context.Context, server string, opts deadline.JobInfoProfile, d *Descriptor) error {
	if a.Resources == nil {
		return errors.New("no farm resources to validate against")
	}
	if server == "" {
		return errors.New("no farm server selected")
	}

	pools := []string{}
	if opts.PrimaryPool != "" || opts.SecondaryPool != "" {
		var err error
		pools, err = a.Resources.Pools(ctx, server)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	d.Pool = deadline.NoneValue
	if opts.PrimaryPool != "" && util.StringSliceContains(pools, opts.PrimaryPool) {
		d.Pool = opts.PrimaryPool
	}
	if opts.SecondaryPool != "" && opts.SecondaryPool != deadline.NoneValue && util.StringSliceContains(pools, opts.SecondaryPool) {
		d.SecondaryPool = opts.SecondaryPool
	}
	a.logDropped("pool", []string{opts.PrimaryPool, opts.SecondaryPool}, pools)

	groups, err := a.Resources.Groups(ctx, server)
	if err != nil {
		return errors.WithStack(err)
	}
	switch {
	case opts.Group != "" && util.StringSliceContains(groups, opts.Group):
		d.Group = opts.Group
	case len(groups) > 0:
		d.Group = groups[0]
	default:
		d.Group = deadline.NoneValue
	}
	a.logDropped("group", []string{opts.Group}, groups)

	if len(opts.LimitGroups) > 0 {
		limitGroups, err := a.Resources.LimitGroups(ctx, server)
		if err != nil {
			return errors.WithStack(err)
		}
		d.LimitGroups = util.StringSliceIntersection(limitGroups, opts.LimitGroups)
		a.logDropped("limit group", opts.LimitGroups, limitGroups)
	}

	if len(opts.MachineList) > 0 {
		machines, err := a.Resources.Machines(ctx, server)
		if err != nil {
			return errors.WithStack(err)
		}
		d.MachineList = util.StringSliceIntersection(machines, opts.MachineList)
		a.logDropped("machine", opts.MachineList, machines)
	}

	return nil
}

func (a *Assembler) logDropped(kind string, requested, available []string) {
	dropped := []string{}
	for _, name := range requested {
		if name != "" && name != deadline.NoneValue && !util.StringSliceContains(available, name) {
			dropped = append(dropped, name)
		}
	}
	a.Logger.InfoWhen(len(dropped) > 0, message.Fields{
		"message": "dropping names the farm does not list",
		"kind":    kind,
		"dropped": dropped,
	})
}

// ParseAdditionalInfo parses a JSON object of additional key/value entries.
// Blank input yields no entries; anything but an object is an error. Numbers
// are kept as json.Number so they render exactly as written.
func ParseAdditionalInfo(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "parsing JSON object")
	}
	if out == nil {
		return nil, errors.New("expected a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return out, nil
}

// splitNames accepts both lists and comma separated strings.
func splitNames(in []string) []string {
	return util.UniqueStrings(util.SplitCommas(in))
}

func copyEnvironment(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

// Families returns the families to tag an instance with: it is always
// submitted for rendering and gets a publish job unless one of its families
// publishes itself.
func Families(instanceFamilies, skipPublishJob []string) []string {
	out := []string{deadline.FamilySubmitRender}
	if len(util.StringSliceIntersection(skipPublishJob, instanceFamilies)) == 0 {
		out = append(out, deadline.FamilySubmitPublishJob)
	}
	return out
}

// IsFarmInstance reports whether any of the families is rendered on the
// farm.
func IsFarmInstance(families []string) bool {
	return len(util.StringSliceIntersection(deadline.FarmFamilies, families)) > 0
}
