package dsl

import (
	"fmt"
	"time"

	"github.com/royglick/laboneq/pkg/parameter"
)

// SweepParameter is re-exported so experiment definitions only need this
// package for the common case.
type SweepParameter = parameter.Sweep

// SectionKind discriminates the section variants of the experiment tree.
type SectionKind string

const (
	KindPlain       SectionKind = "section"
	KindSweep       SectionKind = "sweep"
	KindAcquireLoop SectionKind = "acquire_loop_rt"
)

// Section is a node of the experiment tree. Child sections execute
// sequentially in definition order; operations on different signals within
// one section run on parallel per-signal tracks.
type Section struct {
	exp  *Experiment
	uid  string
	kind SectionKind

	execution ExecutionType
	alignment Alignment
	length    time.Duration
	playAfter []string

	// sweep sections
	parameters []parameter.Sweep

	// acquire loop
	count       int
	averaging   AveragingMode
	acquisition AcquisitionType

	children []*Section
	ops      []Operation
}

func newSection(e *Experiment, uid string, kind SectionKind, exec ExecutionType) *Section {
	if uid == "" {
		e.addErr(fmt.Errorf("dsl: %s uid must not be empty", kind))
		uid = "unnamed"
	}
	return &Section{exp: e, uid: uid, kind: kind, execution: exec, alignment: AlignLeft}
}

func newSweepSection(e *Experiment, uid string, exec ExecutionType, params []parameter.Sweep) *Section {
	s := newSection(e, uid, KindSweep, exec)
	if len(params) == 0 {
		e.addErr(fmt.Errorf("dsl: sweep %q has no parameters", uid))
		return s
	}
	for _, p := range params {
		if p.Len() == 0 {
			e.addErr(fmt.Errorf("dsl: sweep %q parameter %q has no values", uid, p.UID))
		}
	}
	for _, p := range params[1:] {
		if p.Len() != params[0].Len() {
			e.addErr(fmt.Errorf("dsl: sweep %q parameters %q and %q differ in length (%d vs %d)",
				uid, params[0].UID, p.UID, params[0].Len(), p.Len()))
		}
	}
	s.parameters = params
	return s
}

// UID returns the section identifier.
func (s *Section) UID() string { return s.uid }

// Kind returns the section variant.
func (s *Section) Kind() SectionKind { return s.kind }

// Execution reports whether the section runs in near-time or real-time scope.
func (s *Section) Execution() ExecutionType { return s.execution }

// Parameters returns the sweep parameters of a sweep section.
func (s *Section) Parameters() []parameter.Sweep { return s.parameters }

// LoopCount returns the shot count of an acquire loop section.
func (s *Section) LoopCount() int { return s.count }

// Averaging returns the averaging mode of an acquire loop section.
func (s *Section) Averaging() AveragingMode { return s.averaging }

// Acquisition returns the acquisition type of an acquire loop section.
func (s *Section) Acquisition() AcquisitionType { return s.acquisition }

// Children returns nested sections in definition order.
func (s *Section) Children() []*Section { return s.children }

// Operations returns the section's operations in definition order.
func (s *Section) Operations() []Operation { return s.ops }

// Alignment returns the section alignment.
func (s *Section) Alignment() Alignment { return s.alignment }

// Length returns the explicit section length, or 0 when derived from content.
func (s *Section) Length() time.Duration { return s.length }

// PlayAfterSections returns the UIDs of sibling sections this section is
// ordered after.
func (s *Section) PlayAfterSections() []string { return s.playAfter }

// WithAlignment sets the section alignment.
func (s *Section) WithAlignment(a Alignment) *Section {
	s.alignment = a
	return s
}

// WithLength forces an explicit section length. Content longer than the
// explicit length is a compile error.
func (s *Section) WithLength(d time.Duration) *Section {
	if d < 0 {
		s.exp.addErr(fmt.Errorf("dsl: section %q has negative length", s.uid))
		return s
	}
	s.length = d
	return s
}

// PlayAfter orders this section after the named sibling sections.
func (s *Section) PlayAfter(uids ...string) *Section {
	s.playAfter = append(s.playAfter, uids...)
	return s
}

// Section appends a nested plain section.
func (s *Section) Section(uid string) *Section {
	c := newSection(s.exp, uid, KindPlain, s.execution)
	s.children = append(s.children, c)
	return c
}

// Sweep appends a nested sweep. A sweep nested under the real-time acquire
// loop executes on the sequencer; one outside executes in near-time on the
// host.
func (s *Section) Sweep(uid string, params ...parameter.Sweep) *Section {
	c := newSweepSection(s.exp, uid, s.execution, params)
	s.children = append(s.children, c)
	return c
}

// AcquireLoopRt nests the real-time acquire loop under a near-time section,
// the usual shape for experiments with near-time sweeps around a real-time
// core.
func (s *Section) AcquireLoopRt(uid string, count int, mode AveragingMode, acq AcquisitionType) *Section {
	if count < 1 {
		s.exp.addErr(fmt.Errorf("dsl: acquire loop %q needs count >= 1, got %d", uid, count))
		count = 1
	}
	c := newSection(s.exp, uid, KindAcquireLoop, ExecRealTime)
	c.count = count
	c.averaging = mode
	c.acquisition = acq
	s.children = append(s.children, c)
	return c
}
