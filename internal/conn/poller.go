package conn

import (
	"sync"
	"time"
)

// poller periodically rebuilds one device's snapshot and pushes it to the
// manager's listeners. Each tick re-derives liveness from the activity
// window, so a device that goes quiet flips to connected=false on the next
// tick without any explicit disconnect.
type poller struct {
	m        *Manager
	deviceID string
	interval time.Duration

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func newPoller(m *Manager, deviceID string, interval time.Duration) *poller {
	return &poller{
		m:        m,
		deviceID: deviceID,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (p *poller) start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.m.publishSnapshot(p.deviceID)
		case <-p.done:
			return
		}
	}
}

// stop halts the poll loop and waits for it to exit. Idempotent.
func (p *poller) stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
