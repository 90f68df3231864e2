package audio

import (
	"sync"
)

// fakeDevice stands in for a malgo device. Tests drive the data callback
// directly.
type fakeDevice struct {
	mu       sync.Mutex
	data     func([]byte)
	conf     DeviceConfig
	started  bool
	closed   bool
	starts   int
	stops    int
	startErr error
}

func (d *fakeDevice) start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.starts++
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true

	return nil
}

func (d *fakeDevice) stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stops++
	d.started = false

	return nil
}

func (d *fakeDevice) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.started = false
	d.closed = true

	return nil
}

func (d *fakeDevice) state() (started, closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started, d.closed
}

// fakeOpener records every device it opens.
type fakeOpener struct {
	mu       sync.Mutex
	devices  []*fakeDevice
	openErr  error
	startErr error
}

func (o *fakeOpener) open(conf DeviceConfig, data func([]byte)) (device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}

	d := &fakeDevice{data: data, conf: conf, startErr: o.startErr}
	o.devices = append(o.devices, d)

	return d, nil
}

func (o *fakeOpener) last() *fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}
