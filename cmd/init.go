package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/internal/config"
)

// InitCommand writes a default NodeConfig to disk, per §6.5.
var InitCommand = &cli.Command{
	Name:  "init",
	Usage: "Write a default node configuration file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "rhizos-node.toml",
			Usage:   "Path to write the configuration file",
		},
	},
	Action: func(c *cli.Context) error {
		path := c.String("output")
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Printf("wrote default configuration to %s\n", path)
		return nil
	},
}
