package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/internal/node"
)

// InfoCommand prints the node's detected capabilities to stdout, per §6.5.
var InfoCommand = &cli.Command{
	Name:  "info",
	Usage: "Print detected node capabilities",
	Action: func(c *cli.Context) error {
		caps, err := node.Detect()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(caps, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
