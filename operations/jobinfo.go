package operations

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/evergreen-ci/deadline/addon"
	"github.com/evergreen-ci/deadline/publish"
	"github.com/evergreen-ci/deadline/util"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

func JobInfo() cli.Command {
	return cli.Command{
		Name:  "jobinfo",
		Usage: "collect the farm job info of the instances in a file",
		Flags: addYAMLFlag(addHostFlag(
			cli.StringFlag{
				Name:  instancesFlagName + ", i",
				Usage: "YAML file describing the publish context and its instances",
			})...),
		Before: mergeBeforeFuncs(requireStringFlag(instancesFlagName), requireFileExists(instancesFlagName)),
		Action: func(c *cli.Context) error {
			a, err := loadAddon(c.Parent().String(confFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			pctx, err := readPublishContext(c.String(instancesFlagName), c.String(hostFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return collectJobInfo(ctx, os.Stdout, a, pctx, nil, c.Bool(yamlFlagName))
		},
	}
}

// readPublishContext reads a publish context from YAML. A non-empty host
// replaces the host named in the file.
func readPublishContext(fn, host string) (*publish.Context, error) {
	pctx := &publish.Context{}
	if err := util.ReadFromYAMLFile(fn, pctx); err != nil {
		return nil, errors.Wrapf(err, "reading instances from '%s'", fn)
	}
	if host != "" {
		pctx.HostName = host
	}
	if pctx.HostName == "" {
		return nil, errors.Errorf("instances file '%s' does not name a host", fn)
	}
	return pctx, nil
}

type collectedInstance struct {
	Name       string            `yaml:"name"`
	Families   []string          `yaml:"families"`
	JobInfo    map[string]string `yaml:"job_info"`
	PluginInfo map[string]string `yaml:"plugin_info,omitempty"`
}

type collectedResult struct {
	Instances []collectedInstance `yaml:"instances"`
	Failed    map[string]string   `yaml:"failed,omitempty"`
}

func collectJobInfo(ctx context.Context, w io.Writer, a *addon.Addon, pctx *publish.Context, lookup publish.EnvLookup, asYAML bool) error {
	res, err := a.Publish(ctx, pctx, lookup)
	if err != nil {
		return errors.WithStack(err)
	}

	out := collectedResult{Instances: []collectedInstance{}, Failed: map[string]string{}}
	for _, i := range pctx.Instances {
		d, ok := i.JobDescriptor()
		if !ok {
			continue
		}
		jobInfo, err := d.JobInfo().ToMap()
		if err != nil {
			return errors.Wrapf(err, "rendering job info of '%s'", i.Name)
		}
		pluginInfo, err := d.PluginInfo().ToMap()
		if err != nil {
			return errors.Wrapf(err, "rendering plugin info of '%s'", i.Name)
		}
		out.Instances = append(out.Instances, collectedInstance{
			Name:       i.Name,
			Families:   i.Families,
			JobInfo:    jobInfo,
			PluginInfo: pluginInfo,
		})
	}
	for name, err := range res.Failed {
		out.Failed[name] = err.Error()
	}

	if asYAML {
		data, err := yaml.Marshal(out)
		if err != nil {
			return errors.Wrap(err, "marshalling job info")
		}
		if _, err = w.Write(data); err != nil {
			return errors.WithStack(err)
		}
	} else {
		for _, i := range pctx.Instances {
			d, ok := i.JobDescriptor()
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s (%s):\n", i.Name, d.ID)
			t := newTable(w)
			t.AddHeader("Key", "Value")
			for _, pair := range d.JobInfo() {
				t.AddLine(pair.Key, pair.Value)
			}
			for _, pair := range d.PluginInfo() {
				t.AddLine("Plugin."+pair.Key, pair.Value)
			}
			t.Print()
			fmt.Fprintln(w)
		}
		for _, name := range res.FailedInstances() {
			fmt.Fprintf(w, "FAILED %s: %s\n", name, res.Failed[name])
		}
	}

	if len(res.Failed) > 0 || len(res.ContextErrors) > 0 {
		return errors.Errorf("%d instance(s) failed", len(res.Failed)+len(res.ContextErrors))
	}
	return nil
}
