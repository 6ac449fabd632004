package rules

// Reasons lists every reason a point can be flagged for. A point's reason
// code is its index here; 0 means not flagged by this pass.
var Reasons = []string{
	"",
	"max abs",
	"min abs",
	"nmedian",
	"outlier",
	"high outlier",
	"low outlier",
	"too many flags",
	"too many entirely flagged",
	"bad quadrant",
	"bad baseline",
	"bad antenna",
	"edges",
	"sharps",
	"diffmad",
	"tmf",
}

// ReasonCode returns the code for a reason name, or 0 if unknown.
func ReasonCode(reason string) int {
	for i, r := range Reasons {
		if i > 0 && r == reason {
			return i
		}
	}
	return 0
}

// ReasonName returns the reason for a code, or "" if out of range.
func ReasonName(code int) string {
	if code <= 0 || code >= len(Reasons) {
		return ""
	}
	return Reasons[code]
}
