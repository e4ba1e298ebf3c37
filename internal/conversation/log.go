package conversation

import (
	"fmt"
	"time"
)

// Record kinds written to the transcript log.
const (
	KindTurn    = "turn"
	KindSummary = "summary"
	KindClear   = "clear"
)

// Record is one line of the transcript log.
type Record struct {
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Turn    *Turn     `json:"turn,omitempty"`
	Summary *Summary  `json:"summary,omitempty"`
	Through int       `json:"through,omitempty"`
}

// Replay rebuilds the transcript from its log, applying only records newer
// than what the transcript already holds. Restoring a snapshot and then
// replaying the log recovers turns appended after the snapshot was taken.
func (t *Transcript) Replay() (int, error) {
	if t.log == nil {
		return 0, nil
	}

	state := t.State()
	lastTurn := state.NextIndex - 1
	lastSummary := state.ClearedThrough
	if n := len(state.Summaries); n > 0 {
		lastSummary = max(lastSummary, state.Summaries[n-1].End)
	}

	applied := 0
	for rec, err := range t.log.Records() {
		if err != nil {
			return applied, fmt.Errorf("replay transcript: %w", err)
		}

		switch rec.Kind {
		case KindTurn:
			if rec.Turn == nil || rec.Turn.Index <= lastTurn {
				continue
			}
			state.Turns = append(state.Turns, *rec.Turn)
			lastTurn = rec.Turn.Index
		case KindSummary:
			if rec.Summary == nil || rec.Summary.Start <= lastSummary {
				continue
			}
			state.Summaries = append(state.Summaries, *rec.Summary)
			lastSummary = rec.Summary.End
		case KindClear:
			if rec.Through <= state.ClearedThrough {
				continue
			}
			state = clearedState(state, rec.Through)
		default:
			continue
		}
		applied++
	}

	state.NextIndex = max(state.NextIndex, lastTurn+1)

	if err := t.Restore(state); err != nil {
		return 0, fmt.Errorf("replay transcript: %w", err)
	}

	return applied, nil
}

func clearedState(state State, through int) State {
	var turns []Turn
	for _, turn := range state.Turns {
		if turn.Index > through {
			turns = append(turns, turn)
		}
	}

	state.Turns = turns
	state.Summaries = nil
	state.ClearedThrough = through
	return state
}
