package domain

import "fmt"

// DependencyMap records which original orders were consolidated under each
// representative. Members are stored representative-first, and entries keep
// the order in which they were added.
//
// Every order id appears in exactly one entry; Add enforces this.
type DependencyMap struct {
	reps    []string
	members map[string][]string
	owner   map[string]string
}

func NewDependencyMap() *DependencyMap {
	return &DependencyMap{
		members: make(map[string][]string),
		owner:   make(map[string]string),
	}
}

// Add appends a group. members[0] is the representative.
func (d *DependencyMap) Add(members []string) error {
	if len(members) == 0 {
		return &FormatError{Reason: "group must contain a representative"}
	}
	for _, id := range members {
		if err := ValidateOrderID(id); err != nil {
			return err
		}
	}

	local := make(map[string]struct{}, len(members))
	for _, id := range members {
		if rep, ok := d.owner[id]; ok {
			return &FormatError{Reason: fmt.Sprintf("order %q already listed under %q", id, rep)}
		}
		if _, ok := local[id]; ok {
			return &FormatError{Reason: fmt.Sprintf("order %q listed twice in group %q", id, members[0])}
		}
		local[id] = struct{}{}
	}

	rep := members[0]
	cp := append([]string(nil), members...)
	d.reps = append(d.reps, rep)
	d.members[rep] = cp
	for _, id := range cp {
		d.owner[id] = rep
	}
	return nil
}

// Representatives returns representative ids in insertion order.
func (d *DependencyMap) Representatives() []string {
	return append([]string(nil), d.reps...)
}

// Members returns the group for rep, representative first.
func (d *DependencyMap) Members(rep string) ([]string, bool) {
	m, ok := d.members[rep]
	if !ok {
		return nil, false
	}
	return append([]string(nil), m...), true
}

// RepresentativeOf returns the representative an order was consolidated under.
func (d *DependencyMap) RepresentativeOf(id string) (string, bool) {
	rep, ok := d.owner[id]
	return rep, ok
}

// Len is the number of groups.
func (d *DependencyMap) Len() int { return len(d.reps) }

// OrderCount is the number of original orders across all groups.
func (d *DependencyMap) OrderCount() int { return len(d.owner) }

// OrderIDs returns every member id, group by group.
func (d *DependencyMap) OrderIDs() []string {
	out := make([]string, 0, len(d.owner))
	for _, rep := range d.reps {
		out = append(out, d.members[rep]...)
	}
	return out
}
