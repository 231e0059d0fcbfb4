package v1

// Snapshot is a point-in-time view of the controller's job state. It
// is safe to copy and carries no references back into the controller.
type Snapshot struct {
	JobID       string `json:"jobId,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Phase       Phase  `json:"phase"`
	Reached     Phase  `json:"reached"`
	ArtifactRef string `json:"artifactRef,omitempty"`
	Active      bool   `json:"active"`
}

// IdleSnapshot is the baseline returned before any submission.
func IdleSnapshot() Snapshot {
	return Snapshot{Phase: PhaseIdle, Reached: PhaseIdle}
}
