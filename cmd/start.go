package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/internal/api"
	"github.com/catalystcommunity/rhizos-node/internal/config"
	"github.com/catalystcommunity/rhizos-node/internal/executor"
	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/session"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

// defaultOrchestratorURL is the orchestrator this agent talks to absent an
// explicit --orchestrator flag, per §6.5.
const defaultOrchestratorURL = "https://orchestrator.rhizos.cloud"

// StartCommand runs the node agent: probe capabilities, load config, and
// drive the orchestrator session and job executor until signaled to stop.
// Grounded on the teacher's cmd/worker.go signal-channel shutdown shape,
// adapted from a single foreground worker loop to three concurrently
// running components (session, executor-backed container engine, local
// status API) sharing one cancellation context.
var StartCommand = &cli.Command{
	Name:  "start",
	Usage: "Start the node agent",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "rhizos-node.toml",
			Usage:   "Path to the node configuration file",
			EnvVars: []string{"RHIZOS_NODE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "orchestrator",
			Aliases: []string{"o"},
			Value:   defaultOrchestratorURL,
			Usage:   "Orchestrator base URL",
			EnvVars: []string{"RHIZOS_ORCHESTRATOR_URL"},
		},
	},
	Action: runStart,
}

func runStart(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		logging.Log.WithError(err).Warn("no config file found, using defaults")
		cfg = config.Default()
	}

	caps, err := node.Detect()
	if err != nil {
		return err
	}
	if cfg.NodeID != "" {
		caps.NodeID = cfg.NodeID
	}

	logging.Log.WithFields(map[string]any{
		"node_id": caps.NodeID,
		"cpu":     caps.CPU.Model,
		"cores":   caps.CPU.Cores,
		"gpus":    len(caps.GPUs),
	}).Info("capabilities detected")

	engine, err := executor.NewDockerEngine()
	if err != nil {
		return err
	}

	st := state.New()
	st.SetNodeID(caps.NodeID)

	ex := executor.New(engine, st, executor.Config{
		MaxConcurrentJobs: cfg.Limits.MaxConcurrentJobs,
		MaxMemoryMB:       cfg.Limits.MaxMemoryMB,
		CPUCores:          cfg.Limits.CPUCores,
		Currency:          cfg.Currency,
		Pricing: executor.PricingInputs{
			GPUHourCents:     cfg.Pricing.GPUHourCents,
			CPUCoreHourCents: cfg.Pricing.CPUCoreHourCents,
			MinimumCents:     cfg.Pricing.MinimumCents,
			CPUCoresLimit:    cfg.Limits.CPUCores,
		},
	})

	orchestratorURL := c.String("orchestrator")
	sess := session.New(session.Config{
		OrchestratorURL:   orchestratorURL,
		AuthToken:         cfg.AuthToken,
		MaxConcurrentJobs: cfg.Limits.MaxConcurrentJobs,
	}, caps, st, ex)

	monitor := node.NewResourceMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	statusAPI := api.New(st, caps, monitor, node.NodeVersion)
	go func() {
		if err := statusAPI.ListenAndServe(cfg.Network.APIPort); err != nil {
			logging.Log.WithError(err).Warn("local status API exited")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sessionErrCh := make(chan error, 1)
	go func() {
		sessionErrCh <- sess.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logging.Log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		<-sessionErrCh
		return nil
	case err := <-sessionErrCh:
		return err
	}
}
