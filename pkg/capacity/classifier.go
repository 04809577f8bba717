// Package capacity implements the capacity-pool classifier: a pure
// function that buckets storage and meta entities into normal, low, or
// emergency classes per storage pool, with optional dynamic threshold
// substitution driven by the spread of free space/inodes already observed
// within a class.
package capacity

import (
	"sort"

	"github.com/beegfs/mgmtd/pkg/types"
)

// Limits is one pool's static and dynamic threshold configuration.
type Limits struct {
	SpaceLow               int64
	SpaceEmergency         int64
	InodesLow              int64
	InodesEmergency        int64
	SpaceLowDynamic        int64
	SpaceEmergencyDynamic  int64
	InodesLowDynamic       int64
	InodesEmergencyDynamic int64
	DynamicEnabled         bool
	SpaceNormalThreshold   int64
	SpaceLowThreshold      int64
	InodesNormalThreshold  int64
	InodesLowThreshold     int64
}

// Entity is one classifiable unit: a storage/meta target, or a buddy
// group reduced to the minimum of its two members' free space/inodes.
// FreeSpace/FreeInodes nil means "not yet reported", which always
// classifies as emergency and is excluded from spread computation.
type Entity struct {
	UID        int64
	FreeSpace  *int64
	FreeInodes *int64
}

// Result is one entity's final classification.
type Result struct {
	UID   int64
	Class types.CapacityClass
}

// Classify runs the full four-step algorithm for one pool's entities:
// provisional classification, spread computation, dynamic threshold
// substitution, and final re-classification. Entities is not mutated;
// the returned slice is sorted by UID ascending to make ties
// deterministic.
func Classify(limits Limits, entities []Entity) []Result {
	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UID < sorted[j].UID })

	provisional := classifyWith(limits.SpaceLow, limits.SpaceEmergency, limits.InodesLow, limits.InodesEmergency, sorted)

	final := limits
	if limits.DynamicEnabled {
		spaceNormalSpread, inodesNormalSpread, normalSeen := spreadOf(sorted, provisional, types.ClassNormal)
		if normalSeen && spaceNormalSpread >= limits.SpaceNormalThreshold {
			final.SpaceLow = limits.SpaceLowDynamic
		}
		if normalSeen && inodesNormalSpread >= limits.InodesNormalThreshold {
			final.InodesLow = limits.InodesLowDynamic
		}
		spaceLowSpread, inodesLowSpread, lowSeen := spreadOf(sorted, provisional, types.ClassLow)
		if lowSeen && spaceLowSpread >= limits.SpaceLowThreshold {
			final.SpaceEmergency = limits.SpaceEmergencyDynamic
		}
		if lowSeen && inodesLowSpread >= limits.InodesLowThreshold {
			final.InodesEmergency = limits.InodesEmergencyDynamic
		}
	}

	return classifyWith(final.SpaceLow, final.SpaceEmergency, final.InodesLow, final.InodesEmergency, sorted)
}

func classifyWith(spaceLow, spaceEm, inodesLow, inodesEm int64, entities []Entity) []Result {
	out := make([]Result, len(entities))
	for i, e := range entities {
		out[i] = Result{UID: e.UID, Class: classifyOne(e, spaceLow, spaceEm, inodesLow, inodesEm)}
	}
	return out
}

func classifyOne(e Entity, spaceLow, spaceEm, inodesLow, inodesEm int64) types.CapacityClass {
	if e.FreeSpace == nil || e.FreeInodes == nil {
		return types.ClassEmergency
	}
	space, inodes := *e.FreeSpace, *e.FreeInodes
	switch {
	case space >= spaceLow && inodes >= inodesLow:
		return types.ClassNormal
	case space >= spaceEm && inodes >= inodesEm:
		return types.ClassLow
	default:
		return types.ClassEmergency
	}
}

// spreadOf returns (space spread, inodes spread) — max minus min — over
// every entity provisionally classified into class. Entities with no
// reported free space/inodes are excluded, since they cannot contribute a
// numeric spread. The third result is false when no entity contributed, in
// which case the class has no spread and Classify keeps its static limits.
func spreadOf(entities []Entity, provisional []Result, class types.CapacityClass) (int64, int64, bool) {
	var spaceMin, spaceMax, inodesMin, inodesMax int64
	seen := false
	byUID := make(map[int64]Entity, len(entities))
	for _, e := range entities {
		byUID[e.UID] = e
	}
	for _, r := range provisional {
		if r.Class != class {
			continue
		}
		e := byUID[r.UID]
		if e.FreeSpace == nil || e.FreeInodes == nil {
			continue
		}
		space, inodes := *e.FreeSpace, *e.FreeInodes
		if !seen {
			spaceMin, spaceMax, inodesMin, inodesMax = space, space, inodes, inodes
			seen = true
			continue
		}
		if space < spaceMin {
			spaceMin = space
		}
		if space > spaceMax {
			spaceMax = space
		}
		if inodes < inodesMin {
			inodesMin = inodes
		}
		if inodes > inodesMax {
			inodesMax = inodes
		}
	}
	if !seen {
		return 0, 0, false
	}
	return spaceMax - spaceMin, inodesMax - inodesMin, true
}

// MinOfTwo reduces a buddy group's two members to the single Entity the
// classifier treats the group as, per dimension. A nil on either member
// propagates to nil (degrades the group to emergency), matching an
// unreachable or offline member pulling the whole group down.
func MinOfTwo(groupUID int64, a, b Entity) Entity {
	return Entity{
		UID:        groupUID,
		FreeSpace:  minPtr(a.FreeSpace, b.FreeSpace),
		FreeInodes: minPtr(a.FreeInodes, b.FreeInodes),
	}
}

func minPtr(a, b *int64) *int64 {
	if a == nil || b == nil {
		return nil
	}
	if *a < *b {
		return a
	}
	return b
}
