package ds

import (
	"fmt"

	"github.com/chazu/kerf/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// InterfKind is the kind pair of an interference, in processing order.
type InterfKind int

const (
	VV InterfKind = iota
	VE
	EE
	VF
	EF
	FF
)

// InterfKinds lists every kind in processing order.
var InterfKinds = []InterfKind{VV, VE, EE, VF, EF, FF}

func (k InterfKind) String() string {
	switch k {
	case VV:
		return "VV"
	case VE:
		return "VE"
	case EE:
		return "EE"
	case VF:
		return "VF"
	case EF:
		return "EF"
	case FF:
		return "FF"
	default:
		return fmt.Sprintf("InterfKind(%d)", int(k))
	}
}

// Contact is a point where two sub-shapes meet. TI and TJ are the curve
// parameters on I and J when those are edges.
type Contact struct {
	Point  v3.Vec
	TI, TJ float64
	// Vertex is the image vertex placed at the contact.
	Vertex int
}

// Overlap is a parameter range where an edge lies on the other shape. The
// J range is set when J is an edge.
type Overlap struct {
	I0, I1 float64
	J0, J1 float64
	V0, V1 int
}

// Section is an intersection curve of two faces, trimmed to their boxes.
type Section struct {
	Curve  geom.Curve
	T0, T1 float64
}

// Interference records how two sub-shapes of different operands meet. I is
// always the lower index.
type Interference struct {
	Kind     InterfKind
	I, J     int
	Contacts []Contact
	Overlaps []Overlap
	Sections []Section
	// Edges are the section edges built from Sections.
	Edges []int
	Tol   float64
}

// Other returns the index paired with i.
func (it *Interference) Other(i int) int {
	if it.I == i {
		return it.J
	}
	return it.I
}

// Param returns the parameter of c on the edge i of the pair.
func (it *Interference) Param(c Contact, i int) float64 {
	if it.I == i {
		return c.TI
	}
	return c.TJ
}

// Range returns the parameter range of o on the edge i of the pair.
func (it *Interference) Range(o Overlap, i int) (float64, float64) {
	if it.I == i {
		return o.I0, o.I1
	}
	return o.J0, o.J1
}

type interfKey struct {
	kind InterfKind
	i, j int
}

// AddInterference stores it in canonical order. A second record for the
// same pair and kind is rejected and the stored one returned with false.
func (d *DS) AddInterference(it *Interference) (*Interference, bool) {
	if it.I > it.J {
		it.I, it.J = it.J, it.I
		for k := range it.Contacts {
			c := &it.Contacts[k]
			c.TI, c.TJ = c.TJ, c.TI
		}
		for k := range it.Overlaps {
			o := &it.Overlaps[k]
			o.I0, o.I1, o.J0, o.J1 = o.J0, o.J1, o.I0, o.I1
		}
	}
	key := interfKey{it.Kind, it.I, it.J}
	d.mu.Lock()
	defer d.mu.Unlock()
	if k, ok := d.interfKey[key]; ok {
		return d.interf[k], false
	}
	d.interfKey[key] = len(d.interf)
	d.interf = append(d.interf, it)
	return it, true
}

// Interferences returns the records of one kind in insertion order.
func (d *DS) Interferences(kind InterfKind) []*Interference {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Interference
	for _, it := range d.interf {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// InterferenceCount returns the number of records per kind.
func (d *DS) InterferenceCount() map[InterfKind]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[InterfKind]int)
	for _, it := range d.interf {
		out[it.Kind]++
	}
	return out
}
