package pfrp

// config.go holds the parameters of an experiment and their
// serialization to and from yaml or json

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// SimMode selects how, and whether, forwarding probabilities are learned
type SimMode int

const (
	// Static routing, probabilities never change
	Static SimMode = iota

	// SingleAgent learner returns link weights for the whole network
	SingleAgent

	// MultiAgent learner returns the final probability matrix, and is
	// rewarded per node
	MultiAgent
)

var simModeToStr map[SimMode]string = map[SimMode]string{Static: "static", SingleAgent: "single-agent", MultiAgent: "multi-agent"}

// protocol tags carried in packet names
var simModeToTag map[SimMode]string = map[SimMode]string{Static: "other", SingleAgent: "pfrpsa", MultiAgent: "pfrpma"}

func (sm SimMode) String() string {
	str, present := simModeToStr[sm]
	if !present {
		return fmt.Sprintf("mode(%d)", int(sm))
	}
	return str
}

// ProtocolTag is the routing protocol field of packet names sent under the mode
func (sm SimMode) ProtocolTag() string {
	return simModeToTag[sm]
}

// Learning is true for the modes that exchange messages with a learner
func (sm SimMode) Learning() bool {
	return sm == SingleAgent || sm == MultiAgent
}

// Config describes an experiment.  The first group of parameters configures
// the routing table, the second the traffic harness, the third logging,
// tracing and metrics.
type Config struct {
	NodeNum      int     `json:"nodenum" yaml:"nodenum"`
	RoutingFile  string  `json:"routingfile" yaml:"routingfile"`
	Port         int     `json:"port" yaml:"port"`
	SurvivalTime float64 `json:"survivaltime" yaml:"survivaltime"`
	TotalStep    int     `json:"totalstep" yaml:"totalstep"`
	SimMode      SimMode `json:"simmode" yaml:"simmode"`

	StepTime      float64 `json:"steptime" yaml:"steptime"`           // seconds per step
	MessageLength int     `json:"messagelength" yaml:"messagelength"` // bytes per packet
	FlowRate      float64 `json:"flowrate" yaml:"flowrate"`           // Mbit/s sent by each host
	StopTime      float64 `json:"stoptime" yaml:"stoptime"`           // simulation end, seconds
	HopLatency    float64 `json:"hoplatency" yaml:"hoplatency"`       // propagation delay per hop, seconds
	Bandwidth     float64 `json:"bandwidth" yaml:"bandwidth"`         // link bandwidth, Mbit/s
	DropRate      float64 `json:"droprate" yaml:"droprate"`           // per-hop loss probability
	MaxHops       int     `json:"maxhops" yaml:"maxhops"`             // packets exceeding it are dropped
	RngName       string  `json:"rngname" yaml:"rngname"`

	LogLevel    string `json:"loglevel" yaml:"loglevel"`
	LogFile     string `json:"logfile" yaml:"logfile"`
	TraceFile   string `json:"tracefile" yaml:"tracefile"`
	MetricsAddr string `json:"metricsaddr" yaml:"metricsaddr"`
}

// DefaultConfig returns a configuration with every harness parameter set;
// the routing table parameters are left for the caller
func DefaultConfig() *Config {
	cfg := new(Config)
	cfg.Port = 5555
	cfg.SurvivalTime = 1.0
	cfg.TotalStep = 100
	cfg.SimMode = Static
	cfg.StepTime = 1.0
	cfg.MessageLength = 1024
	cfg.FlowRate = 1.0
	cfg.StopTime = 120.0
	cfg.HopLatency = 1e-3
	cfg.Bandwidth = 100.0
	cfg.DropRate = 0.0
	cfg.MaxHops = 32
	cfg.RngName = "pfrp"
	cfg.LogLevel = "NOTICE"
	return cfg
}

// Validate reports every parameter that is out of range
func (cfg *Config) Validate() error {
	var err error
	if cfg.NodeNum < 0 {
		err = multierr.Append(err, fmt.Errorf("nodenum %d is negative", cfg.NodeNum))
	}
	if cfg.RoutingFile == "" {
		err = multierr.Append(err, fmt.Errorf("routingfile is not set"))
	}
	if cfg.SimMode.Learning() && (cfg.Port <= 0 || cfg.Port > 65535) {
		err = multierr.Append(err, fmt.Errorf("port %d outside (0,65535]", cfg.Port))
	}
	if cfg.SurvivalTime < 0 {
		err = multierr.Append(err, fmt.Errorf("survivaltime %g is negative", cfg.SurvivalTime))
	}
	if cfg.TotalStep <= 0 {
		err = multierr.Append(err, fmt.Errorf("totalstep %d must be positive", cfg.TotalStep))
	}
	if _, present := simModeToStr[cfg.SimMode]; !present {
		err = multierr.Append(err, fmt.Errorf("simmode %d is not one of 0, 1, 2", int(cfg.SimMode)))
	}
	if err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// ValidateHarness reports every traffic harness parameter that is out of range
func (cfg *Config) ValidateHarness() error {
	var err error
	if cfg.StepTime <= 0 {
		err = multierr.Append(err, fmt.Errorf("steptime %g must be positive", cfg.StepTime))
	}
	if cfg.MessageLength <= 0 {
		err = multierr.Append(err, fmt.Errorf("messagelength %d must be positive", cfg.MessageLength))
	}
	if cfg.FlowRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("flowrate %g must be positive", cfg.FlowRate))
	}
	if cfg.Bandwidth <= 0 {
		err = multierr.Append(err, fmt.Errorf("bandwidth %g must be positive", cfg.Bandwidth))
	}
	if cfg.DropRate < 0 || cfg.DropRate >= 1 {
		err = multierr.Append(err, fmt.Errorf("droprate %g outside [0,1)", cfg.DropRate))
	}
	if cfg.MaxHops <= 0 {
		err = multierr.Append(err, fmt.Errorf("maxhops %d must be positive", cfg.MaxHops))
	}
	if err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// WriteToFile stores the Config struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (cfg *Config) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*cfg)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	default:
		return fmt.Errorf("unrecognized config file extension %q", pathExt)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0644)
}

// ReadConfig deserializes a byte slice holding a representation of a Config struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  Parameters absent from the representation keep their DefaultConfig values.
func ReadConfig(filename string, useYAML bool, dict []byte) (*Config, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, &ConfigError{Path: filename, Err: err}
		}
	}

	example := DefaultConfig()

	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}

	if err != nil {
		return nil, &ConfigError{Path: filename, Err: err}
	}

	return example, nil
}
