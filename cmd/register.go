package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/internal/config"
	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/session"
)

// RegisterCommand performs the one-shot HTTP registration call described
// in §6.2 and prints the resulting node_id/auth_token pair.
var RegisterCommand = &cli.Command{
	Name:  "register",
	Usage: "Register this node with an orchestrator",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "orchestrator",
			Aliases:  []string{"o"},
			Required: true,
			Usage:    "Orchestrator base URL",
		},
		&cli.StringFlag{
			Name:     "wallet",
			Aliases:  []string{"w"},
			Required: true,
			Usage:    "Wallet address to receive earnings",
		},
		&cli.StringFlag{
			Name:  "config",
			Value: "rhizos-node.toml",
			Usage: "Path to the node configuration file to update with the result",
		},
	},
	Action: func(c *cli.Context) error {
		caps, err := node.Detect()
		if err != nil {
			return err
		}

		resp, err := session.Register(context.Background(), c.String("orchestrator"), c.String("wallet"), caps)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		cfg, err := config.Load(c.String("config"))
		if err != nil {
			cfg = config.Default()
		}
		cfg.NodeID = resp.NodeID
		cfg.AuthToken = resp.AuthToken
		cfg.WalletAddress = c.String("wallet")
		if err := config.Save(cfg, c.String("config")); err != nil {
			logging.Log.WithError(err).Warn("failed to persist registration result to config file")
		}
		return nil
	},
}
