// Package watchdog pets the systemd watchdog from a timer subscription.
package watchdog

import (
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"metronome/pkg/logx"
	"metronome/timer"
)

type petter struct {
	log logx.Logger
}

func (*petter) Name() string { return "systemd-watchdog" }

func (p *petter) Notify(any) error {
	ack, err := sd.SdNotify(false, sd.SdNotifyWatchdog)
	if err != nil {
		return err
	}
	if !ack {
		p.log.Debug("watchdog notify not delivered (NOTIFY_SOCKET gone?)")
	}
	return nil
}

// Attach registers a watchdog subscription when the process runs under a
// systemd watchdog. Petting at half the configured WatchdogSec keeps a safety
// margin against scheduler jitter. Returns a detach func; both the func and
// Attach itself are no-ops outside systemd.
func Attach(t *timer.Timer, log logx.Logger) (func(), error) {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		log.Debug("systemd watchdog not configured")
		return func() {}, nil
	}

	p := &petter{log: log}
	pet := interval / 2
	if pet < time.Second {
		pet = time.Second
	}
	if err := t.AddSubscriber(p, pet, nil, false); err != nil {
		return nil, err
	}
	log.Info("systemd watchdog attached", logx.Duration("interval", pet))
	return func() { _ = t.RemoveSubscriber(p, nil, true) }, nil
}
