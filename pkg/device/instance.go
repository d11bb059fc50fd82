package device

import "sync"

// Factory builds the process-wide poller on first use.
type Factory func() (*Poller, error)

var (
	instanceMu sync.Mutex
	instance   *Poller
)

// Instance returns the process-wide poller, building it with factory the
// first time. Later calls ignore factory. A nil factory with no instance
// yet fails with ErrNoInstance. A failed build leaves no instance so the
// next call tries again.
//
// Prefer passing a *Poller explicitly; Instance exists for code that
// cannot be handed one.
func Instance(factory Factory) (*Poller, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance, nil
	}
	if factory == nil {
		return nil, ErrNoInstance
	}
	p, err := factory()
	if err != nil {
		return nil, err
	}
	instance = p
	return p, nil
}

// DeleteInstance stops the process-wide poller, releases its device and
// drops it. It is a no-op when no instance exists.
func DeleteInstance() error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		return nil
	}
	p := instance
	instance = nil
	return p.Stop()
}
