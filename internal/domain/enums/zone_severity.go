package enums

import "strings"

type ZoneSeverity string

const (
	ZoneSeverityInfo    ZoneSeverity = "info"
	ZoneSeverityWarning ZoneSeverity = "warning"
	ZoneSeverityDanger  ZoneSeverity = "danger"
)

// Rank orders severities for sorting; unknown values rank below info.
func (s ZoneSeverity) Rank() int {
	switch s {
	case ZoneSeverityDanger:
		return 3
	case ZoneSeverityWarning:
		return 2
	case ZoneSeverityInfo:
		return 1
	default:
		return 0
	}
}

func ParseZoneSeverity(raw string) (ZoneSeverity, bool) {
	value := ZoneSeverity(strings.ToLower(strings.TrimSpace(raw)))
	if value.Rank() == 0 {
		return "", false
	}
	return value, true
}
