package publish

import (
	"context"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/jobinfo"
	"github.com/evergreen-ci/deadline/util"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Instance attribute names whose changes invalidate the attribute
// definitions of the job info collector.
const (
	ChangedActive     = "active"
	ChangedTask       = "task"
	ChangedFolderPath = "folderPath"
)

// InstanceChange records which attributes of an instance changed.
type InstanceChange struct {
	Instance *Instance
	Changed  []string
}

// ValuesChangedEvent is sent by the host when users edit instances.
type ValuesChangedEvent struct {
	Changes []InstanceChange
}

// JobInfoCollector collects the job descriptor of every instance rendered
// on the farm.
type JobInfoCollector struct {
	conf          deadline.JobInfoConfig
	resources     jobinfo.ResourceLister
	assembler     *jobinfo.Assembler
	defaultServer string
	logger        grip.Journaler
}

// NewJobInfoCollector creates the collector. The default server is used for
// instances and contexts that do not name one.
func NewJobInfoCollector(conf deadline.JobInfoConfig, resources jobinfo.ResourceLister, defaultServer string, logger grip.Journaler) *JobInfoCollector {
	if logger == nil {
		logger = logging.MakeGrip(grip.GetSender())
	}
	return &JobInfoCollector{
		conf:          conf,
		resources:     resources,
		assembler:     jobinfo.NewAssembler(resources, logger),
		defaultServer: defaultServer,
		logger:        logger,
	}
}

func (c *JobInfoCollector) Name() string { return deadline.CollectJobInfoPlugin }

func (c *JobInfoCollector) Matches(i *Instance) bool {
	return jobinfo.IsFarmInstance(i.Families)
}

func (c *JobInfoCollector) serverName(pctx *Context, i *Instance) string {
	if name := pctx.ServerName(i); name != "" {
		return name
	}
	return c.defaultServer
}

func (c *JobInfoCollector) resolveProfile(pctx *Context, i *Instance) *deadline.JobInfoProfile {
	p, ok := c.conf.ResolveProfile(pctx.profileContext(i))
	if !ok {
		return nil
	}
	return &p
}

// AttributeDefinitions returns the definitions users fill in for the
// instance. Inactive instances and instances that are not rendered on the
// farm have none.
func (c *JobInfoCollector) AttributeDefinitions(ctx context.Context, pctx *Context, i *Instance) ([]jobinfo.AttributeDefinition, error) {
	if !c.Matches(i) || !i.Active {
		return nil, nil
	}

	defs, err := jobinfo.Definitions(ctx, jobinfo.DefinitionsInput{
		Profile:      c.resolveProfile(pctx, i),
		Resources:    c.resources,
		Server:       c.serverName(pctx, i),
		Host:         pctx.HostName,
		HostDefaults: c.conf.HostDefaults,
	})
	return defs, errors.Wrapf(err, "getting attribute definitions of instance '%s'", i.Name)
}

func (c *JobInfoCollector) Process(ctx context.Context, pctx *Context, i *Instance) error {
	server := c.serverName(pctx, i)
	d, err := c.assembler.Build(ctx, jobinfo.Input{
		Profile:      c.resolveProfile(pctx, i),
		Overrides:    i.PluginAttrValues(c.Name()),
		Server:       server,
		Host:         pctx.HostName,
		HostDefaults: c.conf.HostDefaults,
		Environment:  pctx.JobEnvironment(),
	})
	if err != nil {
		return errors.Wrapf(err, "collecting job info of instance '%s'", i.Name)
	}

	i.setData(deadline.JobInfoDataKey, d)
	i.setData(deadline.ServerDataKey, server)
	i.AddFamilies(jobinfo.Families(i.Families, c.conf.SkipPublishJobFamilies)...)

	c.logger.Info(message.Fields{
		"message":  "collected job info",
		"instance": i.Name,
		"job_id":   d.ID,
		"server":   server,
		"pool":     d.Pool,
		"group":    d.Group,
		"priority": d.Priority,
	})
	return nil
}

// OnValuesChanged refreshes the attribute definitions of the instances whose
// activity, task or folder changed.
func (c *JobInfoCollector) OnValuesChanged(ctx context.Context, pctx *Context, event ValuesChangedEvent) error {
	catcher := grip.NewBasicCatcher()
	for _, change := range event.Changes {
		if change.Instance == nil || !c.Matches(change.Instance) {
			continue
		}
		if len(util.StringSliceIntersection([]string{ChangedActive, ChangedTask, ChangedFolderPath}, change.Changed)) == 0 {
			continue
		}

		defs, err := c.AttributeDefinitions(ctx, pctx, change.Instance)
		if err != nil {
			catcher.Add(err)
			continue
		}
		change.Instance.SetPluginAttrDefs(c.Name(), defs)
	}
	return catcher.Resolve()
}
