package diag

// Severity ranks a diagnostic's impact on the pipeline outcome. Errors
// block successful emission; warnings and infos are advisory.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "INFO",
	SevWarning: "WARNING",
	SevError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Blocking reports whether this severity prevents successful emission.
func (s Severity) Blocking() bool { return s >= SevError }
