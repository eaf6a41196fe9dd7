package operations

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evergreen-ci/deadline/mock"
	"github.com/evergreen-ci/deadline/util"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func MockFarm() cli.Command {
	const (
		portFlagName    = "port"
		dataFlagName    = "data"
		objectsFlagName = "objects"
	)

	return cli.Command{
		Name:  "mock-farm",
		Usage: "serve a fake farm web service for local testing",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  portFlagName + ", p",
				Usage: "port to listen on",
				Value: 8082,
			},
			cli.StringFlag{
				Name:  dataFlagName + ", d",
				Usage: "YAML file with the pools, groups, limit groups and machines to serve",
			},
			cli.BoolFlag{
				Name:  objectsFlagName,
				Usage: "answer with objects instead of plain names",
			},
		},
		Before: requireFileExists(dataFlagName),
		Action: func(c *cli.Context) error {
			data, err := readFarmData(c.String(dataFlagName))
			if err != nil {
				return errors.WithStack(err)
			}
			fake := mock.NewFarm(data)
			fake.ObjectMode = c.Bool(objectsFlagName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go listenForSignals(cancel)

			return serveFarm(ctx, fmt.Sprintf(":%d", c.Int(portFlagName)), fake)
		},
	}
}

func readFarmData(fn string) (mock.FarmData, error) {
	data := mock.FarmData{
		Pools:       []string{"none"},
		Groups:      []string{"none"},
		LimitGroups: []string{},
		Machines:    []string{},
	}
	if fn == "" {
		return data, nil
	}
	if err := util.ReadFromYAMLFile(fn, &data); err != nil {
		return data, errors.Wrap(err, "reading farm data")
	}
	return data, nil
}

func listenForSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	grip.Info("received signal, stopping mock farm")
	cancel()
}

func serveFarm(ctx context.Context, addr string, fake *mock.Farm) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           fake.Handler(),
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      time.Minute,
	}

	grip.Notice(message.Fields{
		"action":       "starting mock farm",
		"addr":         addr,
		"pools":        len(fake.Pools),
		"groups":       len(fake.Groups),
		"limit_groups": len(fake.LimitGroups),
		"machines":     len(fake.Machines),
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return errors.Wrap(err, "serving mock farm")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	grip.Info(message.Fields{
		"action":   "stopping mock farm",
		"requests": fake.TotalRequests(),
	})
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down mock farm")
}
