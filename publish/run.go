package publish

import (
	"context"
	"sort"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// ContextPlugin processes the publish context once per pass.
type ContextPlugin interface {
	Name() string
	ProcessContext(ctx context.Context, pctx *Context) error
}

// InstancePlugin processes every active instance it matches.
type InstancePlugin interface {
	Name() string
	Matches(i *Instance) bool
	Process(ctx context.Context, pctx *Context, i *Instance) error
}

// Result reports the outcome of a publish pass.
type Result struct {
	Processed     []string
	Failed        map[string]error
	ContextErrors map[string]error
}

// FailedInstances returns the names of the failed instances, sorted.
func (r *Result) FailedInstances() []string {
	out := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Err combines all failures of the pass.
func (r *Result) Err() error {
	catcher := grip.NewBasicCatcher()
	for name, err := range r.ContextErrors {
		catcher.Wrapf(err, "plugin '%s'", name)
	}
	for _, name := range r.FailedInstances() {
		catcher.Add(r.Failed[name])
	}
	return catcher.Resolve()
}

// Run processes the context plugins and then every active instance, in
// order. A failing instance is not processed by later plugins but does not
// stop its siblings.
func Run(ctx context.Context, pctx *Context, contextPlugins []ContextPlugin, instancePlugins []InstancePlugin) *Result {
	res := &Result{
		Processed:     []string{},
		Failed:        map[string]error{},
		ContextErrors: map[string]error{},
	}

	for _, plugin := range contextPlugins {
		if err := ctx.Err(); err != nil {
			res.ContextErrors[plugin.Name()] = errors.WithStack(err)
			return res
		}
		if err := plugin.ProcessContext(ctx, pctx); err != nil {
			grip.Error(message.WrapError(err, message.Fields{
				"message": "context plugin failed",
				"plugin":  plugin.Name(),
			}))
			res.ContextErrors[plugin.Name()] = err
		}
	}

	for _, i := range pctx.Instances {
		if !i.Active {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Failed[i.Name] = errors.WithStack(err)
			continue
		}

		var failed bool
		for _, plugin := range instancePlugins {
			if !plugin.Matches(i) {
				continue
			}
			if err := plugin.Process(ctx, pctx, i); err != nil {
				grip.Error(message.WrapError(err, message.Fields{
					"message":  "instance plugin failed",
					"plugin":   plugin.Name(),
					"instance": i.Name,
				}))
				res.Failed[i.Name] = err
				failed = true
				break
			}
		}
		if !failed {
			res.Processed = append(res.Processed, i.Name)
		}
	}

	return res
}
