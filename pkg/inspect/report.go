// Package inspect builds read-only reports of a framekit runtime for
// tooling: the pool collections with their counters and the live state
// machines with their current state.
package inspect

import (
	"bytes"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/errors"
	"github.com/ajitpratap0/framekit/pkg/fsm"
)

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format named by s, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", errors.Newf(errors.ErrorTypeInvalidArgument, "unknown report format %q", s)
}

// PoolSource provides pool snapshots.
type PoolSource interface {
	GetAllCollectionInfos() []cachepool.CollectionInfo
}

// MachineSource provides state machine snapshots.
type MachineSource interface {
	GetAllMachineInfos() []fsm.MachineInfo
}

// Report is an immutable snapshot of both registries.
type Report struct {
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generated_at"`
	Summary     Summary                    `json:"summary" yaml:"summary"`
	Pools       []cachepool.CollectionInfo `json:"pools" yaml:"pools"`
	Machines    []fsm.MachineInfo          `json:"machines" yaml:"machines"`
}

// Summary aggregates a Report.
type Summary struct {
	Collections     int `json:"collections" yaml:"collections"`
	Unused          int `json:"unused" yaml:"unused"`
	Using           int `json:"using" yaml:"using"`
	Created         int `json:"created" yaml:"created"`
	Discarded       int `json:"discarded" yaml:"discarded"`
	Machines        int `json:"machines" yaml:"machines"`
	RunningMachines int `json:"running_machines" yaml:"running_machines"`
	// Balanced is false if any collection breaks
	// created - discarded == unused + using.
	Balanced bool `json:"balanced" yaml:"balanced"`
}

// Build snapshots the given sources. Either source may be nil.
func Build(pools PoolSource, machines MachineSource) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Pools:       []cachepool.CollectionInfo{},
		Machines:    []fsm.MachineInfo{},
	}
	if pools != nil {
		r.Pools = append(r.Pools, pools.GetAllCollectionInfos()...)
	}
	if machines != nil {
		r.Machines = append(r.Machines, machines.GetAllMachineInfos()...)
	}

	s := Summary{
		Collections: len(r.Pools),
		Machines:    len(r.Machines),
		Balanced:    true,
	}
	for _, p := range r.Pools {
		s.Unused += p.UnusedCount
		s.Using += p.UsingCount
		s.Created += p.CreatedCount
		s.Discarded += p.DiscardedCount
		if !p.Balanced() {
			s.Balanced = false
		}
	}
	for _, m := range r.Machines {
		if m.Running {
			s.RunningMachines++
		}
	}
	r.Summary = s
	return r
}

// JSON encodes the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal report")
	}
	return data, nil
}

// YAML encodes the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal report")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal report")
	}
	return buf.Bytes(), nil
}

// Encode writes the report to w in the given format.
func (r *Report) Encode(w io.Writer, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = r.JSON()
		if err == nil {
			data = append(data, '\n')
		}
	case FormatYAML:
		data, err = r.YAML()
	default:
		return errors.Newf(errors.ErrorTypeInvalidArgument, "unknown report format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode parses a JSON report, e.g. one saved by the stats command.
func Decode(data []byte) (*Report, error) {
	r := &Report{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "failed to parse report")
	}
	return r, nil
}
