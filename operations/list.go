package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/evergreen-ci/deadline/addon"
	"github.com/evergreen-ci/deadline/farm"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func List() cli.Command {
	const (
		poolsFlagName       = "pools"
		groupsFlagName      = "groups"
		limitGroupsFlagName = "limit-groups"
		machinesFlagName    = "machines"
		serversFlagName     = "servers"
	)

	return cli.Command{
		Name:  "list",
		Usage: "displays the resources of a farm server",
		Flags: addServerFlag(
			cli.BoolFlag{
				Name:  serversFlagName,
				Usage: "list the configured farm servers",
			},
			cli.BoolFlag{
				Name:  poolsFlagName,
				Usage: "list the pools of the server",
			},
			cli.BoolFlag{
				Name:  groupsFlagName,
				Usage: "list the groups of the server",
			},
			cli.BoolFlag{
				Name:  limitGroupsFlagName,
				Usage: "list the limit groups of the server",
			},
			cli.BoolFlag{
				Name:  machinesFlagName,
				Usage: "list the machines of the server",
			}),
		Before: requireOnlyOneBool(serversFlagName, poolsFlagName, groupsFlagName, limitGroupsFlagName, machinesFlagName),
		Action: func(c *cli.Context) error {
			confPath := c.Parent().String(confFlagName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := loadAddon(confPath)
			if err != nil {
				return errors.WithStack(err)
			}

			if c.Bool(serversFlagName) {
				return listServers(os.Stdout, a)
			}

			server, err := serverOrDefault(a, c.String(serverFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			var kind farm.ResourceKind
			switch {
			case c.Bool(poolsFlagName):
				kind = farm.Pools
			case c.Bool(groupsFlagName):
				kind = farm.Groups
			case c.Bool(limitGroupsFlagName):
				kind = farm.LimitGroups
			case c.Bool(machinesFlagName):
				kind = farm.Machines
			}
			return listResources(ctx, os.Stdout, a, server, kind)
		},
	}
}

func newTable(w io.Writer) *tabby.Tabby {
	return tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
}

func listServers(w io.Writer, a *addon.Addon) error {
	t := newTable(w)
	t.AddHeader("Name", "URL", "Auth")
	for _, name := range a.ServerNames() {
		server, _ := a.Server(name)
		auth := "none"
		switch {
		case server.APIToken != "":
			auth = "token"
		case server.HasBasicAuth():
			auth = "basic"
		}
		t.AddLine(server.Name, server.URL, auth)
	}
	t.Print()
	return nil
}

func listResources(ctx context.Context, w io.Writer, a *addon.Addon, server string, kind farm.ResourceKind) error {
	var (
		names []string
		err   error
	)
	switch kind {
	case farm.Pools:
		names, err = a.Pools(ctx, server)
	case farm.Groups:
		names, err = a.Groups(ctx, server)
	case farm.LimitGroups:
		names, err = a.LimitGroups(ctx, server)
	case farm.Machines:
		names, err = a.Machines(ctx, server)
	default:
		return errors.Errorf("cannot list '%s'", kind)
	}
	if err != nil {
		return errors.Wrapf(err, "listing %s", kind)
	}

	fmt.Fprintf(w, "%d %s on '%s':\n", len(names), kind, server)
	t := newTable(w)
	t.AddHeader("Name")
	for _, name := range names {
		t.AddLine(name)
	}
	t.Print()
	return nil
}
