package pool

import "github.com/ftchann/thermo-amm/lib/ammerrors"

// BeginCritical marks the start of a sequence with partial external effects.
// Pool operations invoked before the matching EndCritical are rejected.
func (p *Pool) BeginCritical() error {
	if p.critical {
		return ammerrors.ErrReentrancy.Wrap("critical section already open")
	}
	p.critical = true
	return nil
}

func (p *Pool) EndCritical() {
	p.critical = false
}

func (p *Pool) InCritical() bool {
	return p.critical
}

// WithCriticalSection runs fn inside a critical section.
func (p *Pool) WithCriticalSection(fn func() error) error {
	if err := p.BeginCritical(); err != nil {
		return err
	}
	defer p.EndCritical()
	return fn()
}
