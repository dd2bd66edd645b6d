package application

import "fmt"

// Daemon bundles the application services behind a single lifecycle. The
// quote engine has no background work of its own, sessions are spawned on
// demand with QuoteService().NewSession; Start and Stop drive the bridge
// lifecycle underneath.
type Daemon struct {
	quoteSvc  *QuoteService
	bridgeSvc *BridgeService
}

// NewDaemon returns the service facade wired from the given services.
func NewDaemon(
	quoteSvc *QuoteService, bridgeSvc *BridgeService,
) (*Daemon, error) {
	if quoteSvc == nil {
		return nil, fmt.Errorf("missing quote service")
	}
	if bridgeSvc == nil {
		return nil, fmt.Errorf("missing bridge service")
	}
	return &Daemon{quoteSvc: quoteSvc, bridgeSvc: bridgeSvc}, nil
}

// QuoteService returns the quote engine.
func (d *Daemon) QuoteService() *QuoteService {
	return d.quoteSvc
}

// BridgeService returns the bridge lifecycle service.
func (d *Daemon) BridgeService() *BridgeService {
	return d.bridgeSvc
}

// Start spins up the bridge lifecycle machinery.
func (d *Daemon) Start() {
	d.bridgeSvc.Start()
}

// Stop tears every background task down.
func (d *Daemon) Stop() {
	d.bridgeSvc.Stop()
}
