package parse

// systemInfoKeys is the fixed key set of the host-environment field.
var systemInfoKeys = []string{"arch", "cpu", "system", "release", "python"}

// SystemInfo is the parsed host-environment field of a submission.
type SystemInfo struct {
	Arch    *string
	CPU     *string
	System  *string
	Release *string
	Python  *string

	UnknownKeys []string
}

// ParseSystemInfo parses the host-environment field. Multi-word values such
// as CPU model names extend until the next recognized key.
func ParseSystemInfo(raw string) SystemInfo {
	f := scanKeyValues(raw, systemInfoKeys)

	return SystemInfo{
		Arch:        f.get("arch"),
		CPU:         f.get("cpu"),
		System:      f.get("system"),
		Release:     f.get("release"),
		Python:      f.get("python"),
		UnknownKeys: f.unknownKeys,
	}
}
