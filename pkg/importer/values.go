package importer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Gender values stored for students.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// ParseDateString converts DD.MM.YYYY, DD/MM/YYYY or DD-MM-YYYY into
// YYYY-MM-DD. Day and month are zero padded but not range checked; inputs
// already in year-first order are passed through. Anything that does not
// split into three parts yields an empty string.
func ParseDateString(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '.' || r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return ""
	}
	if len(parts[0]) == 4 {
		return fmt.Sprintf("%s-%s-%s", parts[0], pad2(parts[1]), pad2(parts[2]))
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
}

// FormatDateString renders an ISO date as DD/MM/YYYY, the layout used by the
// shipped templates. Unrecognised input is returned unchanged.
func FormatDateString(iso string) string {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return iso
	}
	return fmt.Sprintf("%s/%s/%s", pad2(parts[2]), pad2(parts[1]), parts[0])
}

// ParseGender maps "nữ", "nu" or "n" (any case) to female, anything else to male.
func ParseGender(raw string) string {
	value := strings.ToLower(strings.TrimSpace(norm.NFC.String(raw)))
	switch value {
	case "n\u1eef", "nu", "n":
		return GenderFemale
	default:
		return GenderMale
	}
}

// GenderLabel renders the Vietnamese label written to exported files.
func GenderLabel(gender string) string {
	if gender == GenderFemale {
		return "Nữ"
	}
	return "Nam"
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
