package operations

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/addon"
	"github.com/evergreen-ci/deadline/jobinfo"
	"github.com/evergreen-ci/deadline/profile"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

func Profile() cli.Command {
	return cli.Command{
		Name:   "profile",
		Usage:  "show the job info profile matching a host and task",
		Flags:  addContextFlags(),
		Before: requireStringFlag(hostFlagName),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c.Parent().String(confFlagName))
			if err != nil {
				return errors.WithStack(err)
			}
			return printProfile(os.Stdout, &settings.Publish.JobInfo, contextFromFlags(c))
		},
	}
}

func Attrs() cli.Command {
	return cli.Command{
		Name:   "attrs",
		Usage:  "show the job options users may override for a host and task",
		Flags:  addYAMLFlag(addServerFlag(addContextFlags()...)...),
		Before: requireStringFlag(hostFlagName),
		Action: func(c *cli.Context) error {
			a, err := loadAddon(c.Parent().String(confFlagName))
			if err != nil {
				return errors.WithStack(err)
			}
			server, err := serverOrDefault(a, c.String(serverFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return printAttrs(ctx, os.Stdout, a, server, contextFromFlags(c), c.Bool(yamlFlagName))
		},
	}
}

func contextFromFlags(c *cli.Context) profile.Context {
	return profile.Context{
		HostName: c.String(hostFlagName),
		TaskName: c.String(taskFlagName),
		TaskType: c.String(taskTypeFlagName),
	}
}

func printProfile(w io.Writer, conf *deadline.JobInfoConfig, pctx profile.Context) error {
	p, ok := conf.ResolveProfile(pctx)
	if !ok {
		fmt.Fprintf(w, "no profile matches host '%s', task type '%s' and task '%s'\n", pctx.HostName, pctx.TaskType, pctx.TaskName)
		return nil
	}

	out, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshalling profile")
	}
	_, err = w.Write(out)
	return errors.WithStack(err)
}

func printAttrs(ctx context.Context, w io.Writer, a *addon.Addon, server string, pctx profile.Context, asYAML bool) error {
	conf := a.Settings().Publish.JobInfo

	var p *deadline.JobInfoProfile
	if resolved, ok := conf.ResolveProfile(pctx); ok {
		p = &resolved
	}

	defs, err := jobinfo.Definitions(ctx, jobinfo.DefinitionsInput{
		Profile:      p,
		Resources:    a,
		Server:       server,
		Host:         pctx.HostName,
		HostDefaults: conf.HostDefaults,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if asYAML {
		out, err := yaml.Marshal(defs)
		if err != nil {
			return errors.Wrap(err, "marshalling attribute definitions")
		}
		_, err = w.Write(out)
		return errors.WithStack(err)
	}

	if len(defs) == 0 {
		fmt.Fprintln(w, "no overridable job options")
		return nil
	}

	t := newTable(w)
	t.AddHeader("Key", "Type", "Label", "Default", "Items")
	for _, def := range defs {
		if def.Type == jobinfo.SeparatorAttribute {
			continue
		}
		items := ""
		if len(def.Items) > 0 {
			items = fmt.Sprint(def.Items)
		}
		defaultValue := ""
		if def.Default != nil {
			defaultValue = fmt.Sprint(def.Default)
		}
		t.AddLine(def.Key, def.Type, def.Label, defaultValue, items)
	}
	t.Print()
	return nil
}
