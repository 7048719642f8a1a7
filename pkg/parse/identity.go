package parse

// appInfoKeys is the fixed key set of the application-identity field.
var appInfoKeys = []string{"app", "updated", "hash", "url"}

// AppInfo is the parsed application-identity field of a submission.
type AppInfo struct {
	AppName *string
	Updated *string
	Hash    *string
	URL     *string

	// UnknownKeys lists unrecognized keys encountered during the scan. A
	// non-empty list means the field parsed partially; the recognized keys
	// above are still populated.
	UnknownKeys []string
}

// ParseAppInfo parses the application-identity field. Any key may be absent;
// an absent key and the "null" literal both record nil.
func ParseAppInfo(raw string) AppInfo {
	f := scanKeyValues(raw, appInfoKeys)

	return AppInfo{
		AppName:     f.get("app"),
		Updated:     f.get("updated"),
		Hash:        f.get("hash"),
		URL:         f.get("url"),
		UnknownKeys: f.unknownKeys,
	}
}
