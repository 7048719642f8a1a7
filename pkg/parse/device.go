package parse

// deviceInfoKeys is the fixed key set of the device field.
var deviceInfoKeys = []string{"device", "driver", "gpu_chip"}

// DeviceInfo is the parsed device field of a submission.
type DeviceInfo struct {
	Device  *string
	Driver  *string
	GPUChip *string

	UnknownKeys []string
}

// ParseDeviceInfo parses the device field. Device descriptions are multi-word
// ("NVIDIA GeForce RTX 3080") and extend until the next recognized key.
func ParseDeviceInfo(raw string) DeviceInfo {
	f := scanKeyValues(raw, deviceInfoKeys)

	return DeviceInfo{
		Device:      f.get("device"),
		Driver:      f.get("driver"),
		GPUChip:     f.get("gpu_chip"),
		UnknownKeys: f.unknownKeys,
	}
}
