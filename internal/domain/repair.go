package domain

import (
	"errors"
	"strings"
	"time"
)

// EdgeRepair names a follow edge whose two halves may disagree after a
// partial graph update. following(ActorID) is the source of truth.
type EdgeRepair struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId"`
}

// String encodes the repair as "actor:target".
func (r EdgeRepair) String() string {
	return r.ActorID + ":" + r.TargetID
}

// ParseEdgeRepair decodes the form produced by String.
func ParseEdgeRepair(s string) (EdgeRepair, error) {
	actor, target, ok := strings.Cut(s, ":")
	if !ok || actor == "" || target == "" {
		return EdgeRepair{}, errors.New("malformed edge repair: " + s)
	}
	return EdgeRepair{ActorID: actor, TargetID: target}, nil
}

// RepairOutcome is what a reconciliation pass did for one edge.
type RepairOutcome string

const (
	RepairAdded      RepairOutcome = "added"
	RepairRemoved    RepairOutcome = "removed"
	RepairConsistent RepairOutcome = "consistent"
	RepairSkipped    RepairOutcome = "skipped"
	RepairFailed     RepairOutcome = "failed"
)

// RepairResult reports one repaired edge.
type RepairResult struct {
	EdgeRepair
	Outcome RepairOutcome `json:"outcome"`
	Error   string        `json:"error,omitempty"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Processed  int            `json:"processed"`
	Repaired   int            `json:"repaired"`
	Failed     int            `json:"failed"`
	Results    []RepairResult `json:"results"`
}
