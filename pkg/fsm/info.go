package fsm

import "time"

// MachineInfo is an immutable snapshot of one state machine.
type MachineInfo struct {
	Name             string        `json:"name" yaml:"name"`
	OwnerType        string        `json:"owner_type" yaml:"owner_type"`
	FullName         string        `json:"full_name" yaml:"full_name"`
	CurrentState     string        `json:"current_state,omitempty" yaml:"current_state,omitempty"`
	CurrentStateTime time.Duration `json:"current_state_time" yaml:"current_state_time"`
	StateCount       int           `json:"state_count" yaml:"state_count"`
	Running          bool          `json:"running" yaml:"running"`
	Destroyed        bool          `json:"destroyed" yaml:"destroyed"`
}
