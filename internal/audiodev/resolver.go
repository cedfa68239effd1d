package audiodev

import (
	"fmt"
	"strings"

	"github.com/tphakala/audioloop/internal/errors"
)

// Resolver selects devices and stream configs from a Host
type Resolver struct {
	host         Host
	inputName    string
	outputName   string
	policy       ConfigPolicy
	periodFrames uint32
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithInputName selects the capture device by name, ID or name fragment.
func WithInputName(name string) ResolverOption {
	return func(r *Resolver) { r.inputName = name }
}

// WithOutputName selects the playback device by name, ID or name fragment.
func WithOutputName(name string) ResolverOption {
	return func(r *Resolver) { r.outputName = name }
}

// WithPolicy sets the config selection policy. A nil policy is ignored.
func WithPolicy(p ConfigPolicy) ResolverOption {
	return func(r *Resolver) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithPeriodFrames requests a callback period. 0 keeps the host default.
func WithPeriodFrames(frames uint32) ResolverOption {
	return func(r *Resolver) { r.periodFrames = frames }
}

// NewResolver creates a resolver using the system default devices and the
// first-max-rate policy unless overridden.
func NewResolver(host Host, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		host:   host,
		policy: FirstMaxRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Host returns the host devices are resolved from
func (r *Resolver) Host() Host {
	return r.host
}

func (r *Resolver) nameFor(role Role) string {
	if role == Input {
		return r.inputName
	}
	return r.outputName
}

// ResolveDevice returns the device for role. Default names ("", "default",
// "sysdefault") pick the device marked default, or else the first one. Other
// names are matched exactly by name, then by ID, then as a case-insensitive
// name fragment.
func (r *Resolver) ResolveDevice(role Role) (*Device, error) {
	devices, err := r.host.Devices(role)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("operation", "enumerate_devices").
			Context("role", role.String()).
			Context("host", r.host.Name()).
			Build()
	}

	if len(devices) == 0 {
		return nil, errors.New(fmt.Errorf("%w: no %s devices on %s", ErrNoDeviceAvailable, role, r.host.Name())).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("role", role.String()).
			Context("host", r.host.Name()).
			Build()
	}

	name := r.nameFor(role)
	if dev := selectDevice(devices, name); dev != nil {
		return dev, nil
	}

	return nil, errors.New(fmt.Errorf("%w: %s device %q", ErrDeviceNotFound, role, name)).
		Component(componentName).
		Category(errors.CategoryNotFound).
		Context("role", role.String()).
		Context("device_name", name).
		Context("available_devices", len(devices)).
		Build()
}

func isDefaultName(name string) bool {
	return name == "" || name == "default" || name == "sysdefault"
}

func selectDevice(devices []Device, name string) *Device {
	if isDefaultName(name) {
		for i := range devices {
			if devices[i].IsDefault {
				return &devices[i]
			}
		}
		return &devices[0]
	}

	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}

	for i := range devices {
		if devices[i].ID == name {
			return &devices[i]
		}
	}

	needle := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), needle) {
			return &devices[i]
		}
	}

	return nil
}

// ResolveConfig applies the policy to dev's supported configs and sets the
// requested period.
func (r *Resolver) ResolveConfig(dev *Device) (StreamConfig, error) {
	cfg, ok := r.policy(dev.Configs)
	if !ok {
		return StreamConfig{}, errors.New(fmt.Errorf("%w: %s", ErrNoSupportedConfig, dev.Name)).
			Component(componentName).
			Category(errors.CategoryAudioSource).
			Context("role", dev.Role.String()).
			Context("device_name", dev.Name).
			Build()
	}
	cfg.PeriodFrames = r.periodFrames
	return cfg, nil
}
