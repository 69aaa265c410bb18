package security

import "strings"

// HoneypotTriggered inspects the raw form fields for filled decoy fields.
// The decoys are rendered in the form but hidden from human users, so any
// non-blank value indicates an automated submitter. It returns the name of
// the first triggered field for audit logging.
func HoneypotTriggered(form map[string]string, fields []string) (string, bool) {
	for _, field := range fields {
		if value, ok := form[field]; ok && strings.TrimSpace(value) != "" {
			return field, true
		}
	}
	return "", false
}
