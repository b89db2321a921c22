// Command pfrpsim runs probabilistic routing over a simulated network,
// exchanging per-step state and rewards with an external learner.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/iti/pfrp"
	pfrplog "github.com/iti/pfrp/log"
	"github.com/iti/pfrp/sim"
	"github.com/iti/pfrp/zmqlink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// flags holds the command line; set values override the configuration file
type flags struct {
	configFile   string
	nodeNum      int
	routingFile  string
	port         int
	simMode      int
	totalStep    int
	survivalTime float64
	stopTime     float64
	logLevel     string
	logFile      string
	traceFile    string
	metricsAddr  string
	loopback     bool
}

func newRootCommand() *cobra.Command {
	var fl flags

	cmd := &cobra.Command{
		Use:   "pfrpsim",
		Short: "Probabilistic forwarding routing simulation",
		Long: `pfrpsim routes the traffic of a simulated network hop by hop with a
probabilistic routing table.  At the end of every step the per-link traffic
is sent to the learner, whose reply replaces the forwarding probabilities,
and the delay and loss of every completed step are reported back to it.

Modes: 0 static routing, 1 single-agent learner, 2 multi-agent learner.`,
		Example: `  # static routing over a 3 node mesh
  pfrpsim -f mesh3.txt -n 3

  # single-agent learning against a learner bound to port 5555
  pfrpsim -c experiment.yaml --mode 1 --port 5555`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, &fl)
			if err != nil {
				return err
			}
			return run(cfg, fl.loopback)
		},
	}

	cmd.Flags().StringVarP(&fl.configFile, "config", "c", "", "experiment configuration file (.yaml or .json)")
	cmd.Flags().IntVarP(&fl.nodeNum, "nodes", "n", 0, "number of nodes")
	cmd.Flags().StringVarP(&fl.routingFile, "routing-file", "f", "", "initial probability file")
	cmd.Flags().IntVar(&fl.port, "port", 5555, "learner port")
	cmd.Flags().IntVar(&fl.simMode, "mode", 0, "simulation mode (0 static, 1 single-agent, 2 multi-agent)")
	cmd.Flags().IntVar(&fl.totalStep, "total-step", 100, "number of steps")
	cmd.Flags().Float64Var(&fl.survivalTime, "survival", 1.0, "survival time of a closed step, seconds")
	cmd.Flags().Float64Var(&fl.stopTime, "stop-time", 120.0, "simulation end, seconds")
	cmd.Flags().StringVar(&fl.logLevel, "log-level", "NOTICE", "logging level (DEBUG, INFO, NOTICE, WARNING, ERROR)")
	cmd.Flags().StringVar(&fl.logFile, "log-file", "", "log file, stdout when empty")
	cmd.Flags().StringVar(&fl.traceFile, "trace-file", "", "write a trace of learner messages (.yaml or .json)")
	cmd.Flags().StringVar(&fl.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&fl.loopback, "loopback", false, "answer the learner's part in-process with uniform weights")

	return cmd
}

// buildConfig reads the configuration file, if any, and applies the flags that were set
func buildConfig(cmd *cobra.Command, fl *flags) (*pfrp.Config, error) {
	cfg := pfrp.DefaultConfig()
	if fl.configFile != "" {
		ext := filepath.Ext(fl.configFile)
		useYAML := ext == ".yaml" || ext == ".yml" || ext == ".YAML"
		var err error
		cfg, err = pfrp.ReadConfig(fl.configFile, useYAML, nil)
		if err != nil {
			return nil, err
		}
	}

	set := cmd.Flags().Changed
	if set("nodes") {
		cfg.NodeNum = fl.nodeNum
	}
	if set("routing-file") {
		cfg.RoutingFile = fl.routingFile
	}
	if set("port") {
		cfg.Port = fl.port
	}
	if set("mode") {
		cfg.SimMode = pfrp.SimMode(fl.simMode)
	}
	if set("total-step") {
		cfg.TotalStep = fl.totalStep
	}
	if set("survival") {
		cfg.SurvivalTime = fl.survivalTime
	}
	if set("stop-time") {
		cfg.StopTime = fl.stopTime
	}
	if set("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = fl.logLevel
	}
	if set("log-file") {
		cfg.LogFile = fl.logFile
	}
	if set("trace-file") {
		cfg.TraceFile = fl.traceFile
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = fl.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateHarness(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *pfrp.Config, loopback bool) error {
	logBackend, err := pfrplog.New(cfg.LogFile, cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer logBackend.Close()
	log := logBackend.GetLogger("pfrpsim")

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := pfrp.RegisterMetrics(reg); err != nil {
			return err
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	opts := []pfrp.Option{pfrp.WithLogger(logBackend.GetLogger("pfrp"))}

	traceMgr := pfrp.CreateTraceManager(filepath.Base(cfg.RoutingFile), cfg.TraceFile != "")
	opts = append(opts, pfrp.WithTrace(traceMgr))

	if cfg.SimMode.Learning() {
		transport, err := dialLearner(cfg, loopback)
		if err != nil {
			return err
		}
		opts = append(opts, pfrp.WithTransport(transport))
	}

	var shared pfrp.Shared
	table, err := shared.Init(cfg, opts...)
	if err != nil {
		return err
	}
	defer table.Close()

	for k := 0; k < cfg.NodeNum; k++ {
		if err := traceMgr.AddName(k, pfrp.HostName(k), "node"); err != nil {
			return err
		}
	}

	nw, err := sim.New(cfg, table, logBackend.GetLogger("sim"))
	if err != nil {
		return err
	}
	runErr := nw.Run()

	stats := nw.Stats()
	log.Noticef("sent %d, delivered %d, ttl dropped %d, link dropped %d, steps %d",
		stats.Sent, stats.Delivered, stats.TTLDropped, stats.LinkDropped, stats.Steps)

	if cfg.TraceFile != "" {
		if _, err := traceMgr.WriteToFile(cfg.TraceFile); err != nil {
			return err
		}
	}
	return runErr
}

// dialLearner connects to the learner, or builds the in-process stand-in
func dialLearner(cfg *pfrp.Config, loopback bool) (pfrp.Transport, error) {
	if !loopback {
		return zmqlink.Dial(zmqlink.Endpoint(cfg.Port))
	}
	st, err := pfrp.LoadStore(cfg.RoutingFile, cfg.NodeNum)
	if err != nil {
		return nil, err
	}
	return &sim.HandlerTransport{Handler: sim.UniformLearner(cfg.SimMode, st)}, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
