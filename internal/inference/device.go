package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// Device is the compute target a model was loaded onto.
type Device int

const (
	DeviceCPU Device = iota
	DeviceCUDA
)

func (d Device) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceCUDA:
		return "cuda"
	}
	return "unknown"
}

// DeviceRequest is the configured device preference.
type DeviceRequest string

const (
	// DeviceAuto uses CUDA when its execution provider loads, otherwise the CPU.
	DeviceAuto        DeviceRequest = "auto"
	DeviceRequestCPU  DeviceRequest = "cpu"
	DeviceRequestCUDA DeviceRequest = "cuda"
)

// ParseDeviceRequest accepts "auto", "cpu" or "cuda"; empty means auto.
func ParseDeviceRequest(s string) (DeviceRequest, error) {
	switch req := DeviceRequest(strings.ToLower(strings.TrimSpace(s))); req {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceRequestCPU, DeviceRequestCUDA:
		return req, nil
	}
	return "", errors.Errorf("invalid device %q: valid values are auto, cpu and cuda", s)
}

// candidates lists the devices to try, in order.
func (r DeviceRequest) candidates() []Device {
	switch r {
	case DeviceRequestCPU:
		return []Device{DeviceCPU}
	case DeviceRequestCUDA:
		return []Device{DeviceCUDA}
	}
	return []Device{DeviceCUDA, DeviceCPU}
}
