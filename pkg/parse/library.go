package parse

// libraryKeys is the fixed key set of the dependency-version field.
var libraryKeys = []string{"torch", "xformers", "diffusers", "transformers"}

// Libraries is the parsed dependency-version field of a submission.
//
// Xformers here is the version parsed out of the library field. Submissions
// also carry a run-level xformers field; the two are recorded independently
// downstream, not collapsed into one value.
type Libraries struct {
	Torch        *string
	Xformers     *string
	Diffusers    *string
	Transformers *string

	UnknownKeys []string
}

// ParseLibraries parses the dependency-version field.
func ParseLibraries(raw string) Libraries {
	f := scanKeyValues(raw, libraryKeys)

	return Libraries{
		Torch:        f.get("torch"),
		Xformers:     f.get("xformers"),
		Diffusers:    f.get("diffusers"),
		Transformers: f.get("transformers"),
		UnknownKeys:  f.unknownKeys,
	}
}
