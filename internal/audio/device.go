package audio

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkime/rapidvoice/pkg/collections"
	"github.com/gen2brain/malgo"
)

var errNoDevice = errors.New("device not allocated")

// Kind selects capture or playback devices.
type Kind int

const (
	KindCapture Kind = iota
	KindPlayback
)

func (k Kind) String() string {
	if k == KindPlayback {
		return "playback"
	}
	return "capture"
}

func (k Kind) malgo() malgo.DeviceType {
	if k == KindPlayback {
		return malgo.Playback
	}
	return malgo.Capture
}

// Info describes one audio device reported by the backend.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

// EnumerateDevices lists the available devices of the given kind.
func EnumerateDevices(kind Kind) ([]Info, error) {
	// an empty context is enough for enumeration
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	devices, err := devCtx.Devices(kind.malgo())
	if err != nil {
		return nil, fmt.Errorf("failed to get %s devices: %w", kind, err)
	}

	return collections.Apply(devices, malgoDeviceInfoToDeviceInfo), nil
}

// handle owns one initialized malgo context and device.
type handle struct {
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

// openCapture allocates a capture device that hands every captured buffer
// to onData. The buffer is only valid for the duration of the call.
func openCapture(conf DeviceConfig, onData func(samples []byte)) (*handle, error) {
	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = conf.Format
	devCnf.Capture.Channels = uint32(conf.CaptureChannels)
	devCnf.SampleRate = uint32(conf.SampleRate)

	return openDevice(devCnf, malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			onData(samples)
		},
	})
}

// openPlayback allocates a playback device that asks fill for every
// output buffer. fill must write the whole buffer.
func openPlayback(conf DeviceConfig, fill func(out []byte)) (*handle, error) {
	devCnf := malgo.DefaultDeviceConfig(malgo.Playback)
	devCnf.Playback.Format = conf.Format
	devCnf.Playback.Channels = uint32(conf.PlaybackChannels)
	devCnf.SampleRate = uint32(conf.SampleRate)

	return openDevice(devCnf, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			fill(out)
		},
	})
}

func openDevice(devCnf malgo.DeviceConfig, callbacks malgo.DeviceCallbacks) (*handle, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	return &handle{mgCtx: mgCtx, mgDevice: mgDevice}, nil
}

func (h *handle) start() error {
	if h == nil || h.mgDevice == nil {
		return errNoDevice
	}
	if h.mgDevice.IsStarted() {
		return nil
	}

	if err := h.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

// stop halts the device. No data callback runs after it returns.
func (h *handle) stop() error {
	if h == nil || h.mgDevice == nil || !h.mgDevice.IsStarted() {
		return nil
	}

	if err := h.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

// close stops and frees the device. Safe to call more than once.
func (h *handle) close() error {
	if h == nil || h.mgDevice == nil {
		return nil
	}

	err := h.stop()
	h.mgDevice.Uninit()
	uninitializeContext(h.mgCtx)
	h.mgDevice = nil
	h.mgCtx = nil

	return err
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
