package core

import (
	"sort"
	"strings"
)

// AllRegions is the region option that disables region filtering.
const AllRegions = "Semua"

// Filter narrows an asset set. An empty Region or AllRegions keeps every
// region; an empty Types keeps every type.
type Filter struct {
	Region string
	Types  []string
}

// AllRegionsSelected reports whether the filter leaves regions unrestricted.
func (f Filter) AllRegionsSelected() bool {
	return f.Region == "" || f.Region == AllRegions
}

// Apply returns the assets matching f, preserving order.
func (f Filter) Apply(assets []Asset) []Asset {
	var types map[string]struct{}
	if len(f.Types) > 0 {
		types = make(map[string]struct{}, len(f.Types))
		for _, t := range f.Types {
			types[t] = struct{}{}
		}
	}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if !f.AllRegionsSelected() && a.Region != f.Region {
			continue
		}
		if types != nil {
			if _, ok := types[a.Type]; !ok {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// Regions returns the distinct non-empty regions, sorted.
func Regions(assets []Asset) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, a := range assets {
		if strings.TrimSpace(a.Region) == "" {
			continue
		}
		if _, ok := seen[a.Region]; ok {
			continue
		}
		seen[a.Region] = struct{}{}
		out = append(out, a.Region)
	}
	sort.Strings(out)
	return out
}

// Types returns the distinct non-empty asset types in order of first
// appearance. These are the type filter options.
func Types(assets []Asset) []string {
	return typeOrder(assets, false)
}

// typeOrder lists distinct types in order of first appearance, keeping the
// blank type when withBlank is set so value breakdowns still add up.
func typeOrder(assets []Asset, withBlank bool) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, a := range assets {
		if !withBlank && strings.TrimSpace(a.Type) == "" {
			continue
		}
		if _, ok := seen[a.Type]; ok {
			continue
		}
		seen[a.Type] = struct{}{}
		out = append(out, a.Type)
	}
	return out
}

type (
	// ValueShare is one slice of the value-by-type breakdown.
	ValueShare struct {
		Name  string
		Value int64
		Share float64
	}

	// ConditionBreakdown sums value for one condition, split by type.
	ConditionBreakdown struct {
		Condition string
		Total     int64
		ByType    map[string]int64
	}

	Summary struct {
		Count      int
		TotalValue int64
		NullCells  int
		Highest    *Asset
		Lowest     *Asset
		Conditions []ConditionBreakdown
		TypeNames  []string
		ByType     []ValueShare
	}
)

// Summarize computes the monitoring figures for assets. Ties for highest
// and lowest value go to the first asset in order. Sums saturate at
// math.MaxInt64.
func Summarize(assets []Asset) Summary {
	s := Summary{Count: len(assets), TypeNames: typeOrder(assets, true)}
	condIdx := make(map[string]int)
	typeTotals := make(map[string]int64)
	for i := range assets {
		a := &assets[i]
		s.TotalValue = AddValue(s.TotalValue, a.Value)
		if a.Year == nil {
			s.NullCells++
		}
		if s.Highest == nil || a.Value > s.Highest.Value {
			s.Highest = a
		}
		if s.Lowest == nil || a.Value < s.Lowest.Value {
			s.Lowest = a
		}

		idx, ok := condIdx[a.Condition]
		if !ok {
			idx = len(s.Conditions)
			condIdx[a.Condition] = idx
			s.Conditions = append(s.Conditions, ConditionBreakdown{
				Condition: a.Condition,
				ByType:    make(map[string]int64),
			})
		}
		c := &s.Conditions[idx]
		c.Total = AddValue(c.Total, a.Value)
		c.ByType[a.Type] = AddValue(c.ByType[a.Type], a.Value)
		typeTotals[a.Type] = AddValue(typeTotals[a.Type], a.Value)
	}
	for _, name := range s.TypeNames {
		share := 0.0
		if s.TotalValue > 0 {
			share = float64(typeTotals[name]) / float64(s.TotalValue)
		}
		s.ByType = append(s.ByType, ValueShare{Name: name, Value: typeTotals[name], Share: share})
	}
	if s.Highest != nil {
		h, l := *s.Highest, *s.Lowest
		s.Highest, s.Lowest = &h, &l
	}
	return s
}

// ReportState tells the dashboard which view to render.
type ReportState int

const (
	StateNoData ReportState = iota
	StateNoMatch
	StateReady
)

func (s ReportState) String() string {
	switch s {
	case StateNoData:
		return "no_data"
	case StateNoMatch:
		return "no_match"
	default:
		return "ready"
	}
}

// Report is the full monitoring view for one filter.
type Report struct {
	State       ReportState
	Filter      Filter
	Regions     []string
	TypeOptions []string
	Assets      []Asset
	Summary     Summary
}

// BuildReport filters all by f and summarizes the result. Type options are
// drawn from the region-filtered set so they follow the region selection.
func BuildReport(all []Asset, f Filter) Report {
	r := Report{Filter: f, Regions: Regions(all)}
	if len(all) == 0 {
		r.State = StateNoData
		r.Assets = []Asset{}
		r.Summary = Summarize(nil)
		return r
	}
	byRegion := Filter{Region: f.Region}.Apply(all)
	r.TypeOptions = Types(byRegion)
	r.Assets = Filter{Types: f.Types}.Apply(byRegion)
	r.Summary = Summarize(r.Assets)
	if len(r.Assets) == 0 {
		r.State = StateNoMatch
	} else {
		r.State = StateReady
	}
	return r
}
