// Package session implements the Stream Session (C2) and Recording
// Branch (C3) state machines: the per-stream ingest graph, its readiness
// flag, and the attach/detach ordering contract for recording branches.
package session

import "time"

// Protocol is the ingest protocol of a Stream Session.
type Protocol string

const (
	ProtocolRTSP    Protocol = "rtsp"
	ProtocolWebRTC  Protocol = "webrtc"
)

// LifecycleState is a Stream Session's place in the CONNECTING/LIVE/
// DRAINING/DEAD state machine.
type LifecycleState int32

const (
	StateConnecting LifecycleState = iota
	StateLive
	StateDraining
	StateDead
)

func (s LifecycleState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateLive:
		return "LIVE"
	case StateDraining:
		return "DRAINING"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// BranchState is a Recording Branch's place in its own attach/drain/detach lifecycle.
type BranchState int32

const (
	BranchAttaching BranchState = iota
	BranchCapturing
	BranchDraining
	BranchDetached
)

func (s BranchState) String() string {
	switch s {
	case BranchAttaching:
		return "ATTACHING"
	case BranchCapturing:
		return "CAPTURING"
	case BranchDraining:
		return "DRAINING"
	case BranchDetached:
		return "DETACHED"
	default:
		return "UNKNOWN"
	}
}

// Status is the externally visible shape of a Stream Session, returned by
// the Control API's status endpoints.
type Status struct {
	StreamID        string    `json:"stream_id"`
	Protocol        Protocol  `json:"protocol"`
	URL             string    `json:"url"`
	IsConnected     bool      `json:"is_connected"`
	LifecycleState  string    `json:"lifecycle_state"`
	Ready           bool      `json:"ready"`
	ActiveRecording string    `json:"active_recording,omitempty"`
	ConnectedAt     time.Time `json:"connected_at"`
}

// DebugStatus adds graph/branch-point runtime detail to Status.
type DebugStatus struct {
	Status
	GraphState       string `json:"graph_state"`
	BranchPointState string `json:"branch_point_state"`
	ActiveBranches   int    `json:"active_branches"`
}
