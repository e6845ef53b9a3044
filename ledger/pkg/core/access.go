package core

import "fmt"

// Role checks run at the top of every gated mutation, before any state is
// touched, so a failed check aborts with nothing written.

func (l *Ledger) requireOwner(caller string) error {
	if caller != l.cfg.Owner {
		return fmt.Errorf("caller %s is not the platform owner: %w", caller, ErrUnauthorized)
	}
	return nil
}

func (l *Ledger) requireManager(caller string) error {
	if !l.managers[caller] {
		return fmt.Errorf("caller %s is not a project manager: %w", caller, ErrUnauthorized)
	}
	return nil
}

// AddProjectManager grants the project manager role to an address. Roles
// are additive; there is no removal path.
func (l *Ledger) AddProjectManager(caller, address string) error {
	if address == "" {
		return fmt.Errorf("manager address is required: %w", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}

	l.managers[address] = true
	l.log.Debug("core: added project manager", "address", address)
	return nil
}

// IsProjectManager reports whether an address holds the project manager
// role.
func (l *Ledger) IsProjectManager(address string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.managers[address]
}
