package v1

// Phase is the composer-reported position of a mashup job in the
// production pipeline. The four non-terminal phases form a fixed,
// ordered progression; Complete and Failed are terminal and carry no
// ordinal. Idle is a client-side baseline and never appears on the wire.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseParsingPrompt    Phase = "parsing_prompt"
	PhaseSearchingYoutube Phase = "searching_youtube"
	PhaseDownloadingAudio Phase = "downloading_audio"
	PhaseProcessingAudio  Phase = "processing_audio"
	PhaseComplete         Phase = "complete"
	PhaseFailed           Phase = "failed"
)

// StepState classifies a catalog entry relative to a job's progress.
type StepState string

const (
	StepPassed     StepState = "passed"
	StepInProgress StepState = "in_progress"
	StepPending    StepState = "pending"
)

// CatalogEntry describes one non-terminal phase of the pipeline.
// Label is presentational only; no logic depends on it.
type CatalogEntry struct {
	Key     Phase  `json:"key"`
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
}

var catalog = []CatalogEntry{
	{Key: PhaseParsingPrompt, Ordinal: 0, Label: "prompt analysis"},
	{Key: PhaseSearchingYoutube, Ordinal: 1, Label: "source search"},
	{Key: PhaseDownloadingAudio, Ordinal: 2, Label: "audio acquisition"},
	{Key: PhaseProcessingAudio, Ordinal: 3, Label: "mixing/mastering"},
}

// Catalog returns the ordered list of non-terminal phases.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, len(catalog))
	copy(entries, catalog)
	return entries
}

// FirstPhase is the optimistic phase shown between submission and the
// first status response.
func FirstPhase() Phase {
	return catalog[0].Key
}

// StringToPhase maps a composer wire status to a Phase. ok is false
// when the status is neither a catalog key nor a terminal value.
func StringToPhase(s string) (Phase, bool) {
	switch s {
	case string(PhaseParsingPrompt):
		return PhaseParsingPrompt, true
	case string(PhaseSearchingYoutube):
		return PhaseSearchingYoutube, true
	case string(PhaseDownloadingAudio):
		return PhaseDownloadingAudio, true
	case string(PhaseProcessingAudio):
		return PhaseProcessingAudio, true
	case string(PhaseComplete):
		return PhaseComplete, true
	case string(PhaseFailed):
		return PhaseFailed, true
	default:
		return PhaseFailed, false
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Ordinal returns the catalog position of p, or -1 when p is idle or
// terminal.
func (p Phase) Ordinal() int {
	for _, e := range catalog {
		if e.Key == p {
			return e.Ordinal
		}
	}
	return -1
}

// Label returns the display title of p, or the raw key when p is not a
// catalog phase.
func (p Phase) Label() string {
	for _, e := range catalog {
		if e.Key == p {
			return e.Label
		}
	}
	return string(p)
}

// Step is a catalog entry classified against a job's progress.
type Step struct {
	Key   Phase     `json:"key"`
	Label string    `json:"label"`
	State StepState `json:"state"`
}

// Steps classifies every catalog entry against the current phase.
// reached is the last non-terminal phase observed before a terminal
// one; it decides which entries count as passed once the job has
// finished. A finished job has no in-progress entry: everything up to
// and including reached is passed, the rest pending. An idle
// controller reports every entry pending.
func Steps(current, reached Phase) []Step {
	steps := make([]Step, 0, len(catalog))
	switch {
	case current == PhaseIdle:
		for _, e := range catalog {
			steps = append(steps, Step{Key: e.Key, Label: e.Label, State: StepPending})
		}
	case current.Terminal():
		limit := reached.Ordinal()
		for _, e := range catalog {
			state := StepPending
			if limit >= 0 && e.Ordinal <= limit {
				state = StepPassed
			}
			steps = append(steps, Step{Key: e.Key, Label: e.Label, State: state})
		}
	default:
		cur := current.Ordinal()
		for _, e := range catalog {
			state := StepPending
			switch {
			case e.Ordinal < cur:
				state = StepPassed
			case e.Ordinal == cur:
				state = StepInProgress
			}
			steps = append(steps, Step{Key: e.Key, Label: e.Label, State: state})
		}
	}
	return steps
}
