package mssa

import "time"

// Stats counts the memory SSA nodes of one function, or of every function
// built in a session when read off the Builder.
type Stats struct {
	LoadMu   int
	StoreChi int
	CallMu   int
	CallChi  int
	EntryChi int
	RetMu    int
	Phi      int
}

func (s *Stats) add(o Stats) {
	s.LoadMu += o.LoadMu
	s.StoreChi += o.StoreChi
	s.CallMu += o.CallMu
	s.CallChi += o.CallChi
	s.EntryChi += o.EntryChi
	s.RetMu += o.RetMu
	s.Phi += o.Phi
}

func (f *Func) countStats() Stats {
	var s Stats
	for i := range f.uses {
		switch f.uses[i].Kind {
		case UseLoad:
			s.LoadMu++
		case UseCall:
			s.CallMu++
		case UseReturn:
			s.RetMu++
		}
	}
	for i := range f.defs {
		switch f.defs[i].Kind {
		case DefEntry:
			s.EntryChi++
		case DefStore:
			s.StoreChi++
		case DefCall:
			s.CallChi++
		case DefPhi:
			s.Phi++
		}
	}
	return s
}

// Timing breaks construction time down by phase.
type Timing struct {
	Sites  time.Duration // def/use site creation
	Phi    time.Duration // phi insertion
	Rename time.Duration // version renaming
}

func (t *Timing) add(o Timing) {
	t.Sites += o.Sites
	t.Phi += o.Phi
	t.Rename += o.Rename
}

// Total returns the summed construction time.
func (t Timing) Total() time.Duration {
	return t.Sites + t.Phi + t.Rename
}
