package pfrp

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TraceKind classifies what a trace record marks
type TraceKind int

const (
	StateTrace TraceKind = iota
	UpdateTrace
	RewardTrace
	CompleteTrace
	TimeoutTrace
	DiscardTrace
)

var traceKindToStr map[TraceKind]string = map[TraceKind]string{StateTrace: "state", UpdateTrace: "update",
	RewardTrace: "reward", CompleteTrace: "complete", TimeoutTrace: "timeout", DiscardTrace: "discard"}

func (tk TraceKind) String() string {
	return traceKindToStr[tk]
}

// TraceInst is one trace record
type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// NameType names a node id in the trace
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers, per step, the messages exchanged with the learner
// and the way each step was finalized
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each node id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, by step
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  An inactive manager accepts every
// call and records nothing.
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace records a kind event of step at time
func (tm *TraceManager) AddTrace(time float64, step int, kind TraceKind, detail string) {
	if !tm.Active() {
		return
	}
	trace := TraceInst{TraceTime: strconv.FormatFloat(time, 'f', -1, 64), TraceType: kind.String(), TraceStr: detail}
	tm.Traces[step] = append(tm.Traces[step], trace)
}

// AddName maps id to a name and type in the trace
func (tm *TraceManager) AddName(id int, name string, objDesc string) error {
	if !tm.Active() {
		return nil
	}
	if _, present := tm.NameByID[id]; present {
		return fmt.Errorf("duplicated id %d in AddName", id)
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	return nil
}

// Steps returns the steps that have trace records, in increasing order
func (tm *TraceManager) Steps() []int {
	steps := make([]int, 0, len(tm.Traces))
	for step := range tm.Traces {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) (bool, error) {
	if !tm.Active() {
		return false, nil
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*tm)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	default:
		return false, fmt.Errorf("unrecognized trace file extension %q", pathExt)
	}
	if merr != nil {
		return false, merr
	}

	if werr := os.WriteFile(filename, bytes, 0644); werr != nil {
		return false, werr
	}
	return true, nil
}
