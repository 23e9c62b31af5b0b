/*
versions.go - Effective-version lookup and snapshot merging

PURPOSE:
  Legal revisions change an addition's unit values and requirements on a
  given effective date. This file resolves which version applies on a
  target date and produces a catalog snapshot with the effective values
  merged in.

LOOKUP RULE:
  Greatest EffectiveFrom <= target AND (EffectiveTo is nil OR >= target).
  Reads never fail: with no covering version the base Addition applies.

INTEGRITY:
  Overlapping ranges for one addition are a data-integrity violation and
  must be rejected at write time (ValidateVersions); the read path only
  ever returns the first match by EffectiveFrom descending.
*/
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrVersionOverlap is returned when saving a version whose effective
// range overlaps an existing version of the same addition.
var ErrVersionOverlap = errors.New("addition version ranges overlap")

// VersionOverlapError carries the two conflicting versions.
type VersionOverlapError struct {
	AdditionCode string
	First        AdditionVersion
	Second       AdditionVersion
}

func (e *VersionOverlapError) Error() string {
	return fmt.Sprintf("addition %s: version %d overlaps version %d",
		e.AdditionCode, e.First.VersionNumber, e.Second.VersionNumber)
}

func (e *VersionOverlapError) Unwrap() error { return ErrVersionOverlap }

// EffectiveVersion returns the version of the given addition effective on
// the target date, or nil when none covers it. With valid (non-overlapping)
// data at most one version can match; with corrupt data the latest
// EffectiveFrom wins so that reads stay deterministic.
func EffectiveVersion(versions []AdditionVersion, additionCode string, target Date) *AdditionVersion {
	var candidates []AdditionVersion
	for _, v := range versions {
		if v.AdditionCode == additionCode && v.Covers(target) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EffectiveFrom.After(candidates[j].EffectiveFrom)
	})
	return &candidates[0]
}

// MergeWithVersions returns a snapshot of the catalog as of the target
// date: every addition with a covering version has its mutable fields
// overwritten by that version. MaxPerDay falls back to the base value when
// the version omits it. Input slices are not modified.
func MergeWithVersions(additions []Addition, versions []AdditionVersion, target Date) []Addition {
	merged := make([]Addition, len(additions))
	for i, a := range additions {
		v := EffectiveVersion(versions, a.Code, target)
		if v == nil {
			merged[i] = a
			continue
		}
		m := a
		m.UnitValue = v.UnitValue
		m.IsPercentage = v.IsPercentage
		m.PercentageRate = v.PercentageRate
		m.Requirements = v.Requirements
		m.RequirementsData = v.RequirementsData
		m.MaxPerMonth = v.MaxPerMonth
		if v.MaxPerDay != nil {
			m.MaxPerDay = *v.MaxPerDay
		}
		merged[i] = m
	}
	return merged
}

// ValidateVersions checks that no two versions of the same addition have
// overlapping effective ranges. Call before persisting a new version; the
// read path assumes this invariant holds.
func ValidateVersions(versions []AdditionVersion) error {
	byAddition := make(map[string][]AdditionVersion)
	for _, v := range versions {
		byAddition[v.AdditionCode] = append(byAddition[v.AdditionCode], v)
	}

	for code, vs := range byAddition {
		sort.SliceStable(vs, func(i, j int) bool {
			return vs[i].EffectiveFrom.Before(vs[j].EffectiveFrom)
		})
		for i := 0; i < len(vs)-1; i++ {
			cur, next := vs[i], vs[i+1]
			// Open-ended versions cover everything after EffectiveFrom.
			if cur.EffectiveTo == nil || next.EffectiveFrom.BeforeOrEqual(*cur.EffectiveTo) {
				return &VersionOverlapError{AdditionCode: code, First: cur, Second: next}
			}
		}
	}
	return nil
}
