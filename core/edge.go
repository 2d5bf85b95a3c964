package core

import (
	"fmt"
	"strings"
)

// Edge is one side of an undirected link as stored in a node's adjacency
// list. Every link is stored twice, once per endpoint, with identical
// PhysicalDistance and QoSWeight.
type Edge struct {
	To int `json:"to"`

	// PhysicalDistance is informational: 1 + floor(euclidean/10) for
	// proximity-derived links, 1 for bridges.
	PhysicalDistance int `json:"physicalDistance"`

	// QoSWeight is the additive routing cost. Links whose weight reaches the
	// congestion threshold are never relaxed by the router.
	QoSWeight int `json:"qosWeight"`
}

// EdgeRecord is the export form of an undirected link, listed once with A < B.
type EdgeRecord struct {
	A                int `json:"a"`
	B                int `json:"b"`
	QoSWeight        int `json:"qosWeight"`
	PhysicalDistance int `json:"physicalDistance"`
}

// NodeRecord is the export form of a node with its motion trail.
type NodeRecord struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Previous Position `json:"previous"`
	// Moved is true once the node has been through at least one mobility step,
	// which is when Previous becomes meaningful for trail rendering.
	Moved bool `json:"moved"`
}

// WeightProfile selects which fields of an Edge a configuration populates
// and the range QoS weights are drawn from.
type WeightProfile string

const (
	// ProfileUnweighted models plain neighbour lists: every link costs 1.
	ProfileUnweighted WeightProfile = "unweighted"
	// ProfileWeighted draws QoS weights uniformly from [1, Wmax].
	ProfileWeighted WeightProfile = "weighted"
	// ProfileQoS draws QoS weights uniformly from [0, Wmax].
	ProfileQoS WeightProfile = "qos"
)

// ParseWeightProfile maps a config string onto a profile.
func ParseWeightProfile(s string) (WeightProfile, error) {
	switch WeightProfile(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProfileQoS:
		return ProfileQoS, nil
	case ProfileWeighted:
		return ProfileWeighted, nil
	case ProfileUnweighted:
		return ProfileUnweighted, nil
	default:
		return "", fmt.Errorf("%w: unknown weight profile %q", ErrInvalidConfiguration, s)
	}
}

// weightRange returns the inclusive QoS weight range for the profile.
func (p WeightProfile) weightRange(maxWeight int) (lo, hi int) {
	switch p {
	case ProfileUnweighted:
		return 1, 1
	case ProfileWeighted:
		return 1, maxWeight
	default:
		return 0, maxWeight
	}
}
