package main

import (
	"os"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/cmd"
)

func main() {
	app := &cli.App{
		Name:  "rhizos-node",
		Usage: "Compute-contributor node agent",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				EnvVars: []string{"RHIZOS_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logging.Log.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			cmd.StartCommand,
			cmd.InfoCommand,
			cmd.InitCommand,
			cmd.RegisterCommand,
			cmd.BenchmarkCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		// log fatal so we exit with the proper exit code, this is important for containerized deployment health checks
		logging.Log.WithError(err).Fatal("runtime error")
	}
}
