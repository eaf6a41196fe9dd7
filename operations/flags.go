package operations

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	confFlagName      = "conf"
	serverFlagName    = "server"
	hostFlagName      = "host"
	taskFlagName      = "task"
	taskTypeFlagName  = "task-type"
	instancesFlagName = "instances"
	yamlFlagName      = "yaml"
)

func addServerFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  serverFlagName + ", s",
		Usage: "name of the farm server, defaults to the first configured one",
	})
}

func addHostFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  hostFlagName,
		Usage: "name of the host application, e.g. 'maya' or 'nuke'",
	})
}

func addContextFlags(flags ...cli.Flag) []cli.Flag {
	return addHostFlag(append(flags,
		cli.StringFlag{
			Name:  taskFlagName + ", t",
			Usage: "name of the task",
		},
		cli.StringFlag{
			Name:  taskTypeFlagName,
			Usage: "type of the task, e.g. 'Compositing'",
		},
	)...)
}

func addYAMLFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.BoolFlag{
		Name:  yamlFlagName,
		Usage: "print YAML instead of tables",
	})
}

func requireOnlyOneBool(flags ...string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		count := 0
		for _, flag := range flags {
			if c.Bool(flag) {
				count++
			}
		}
		if count != 1 {
			return errors.Errorf("must specify exactly one of: %v", flags)
		}
		return nil
	}
}

func requireStringFlag(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.String(name) == "" {
			return errors.Errorf("must specify --%s", name)
		}
		return nil
	}
}
