package natsadapter

import "strings"

// Subject layout.
const (
	SubjectCustomers = "fieldnav.customers"
	SubjectPositions = "fieldnav.positions"
)

// CustomerSubject is the subject for a registry event type, e.g.
// fieldnav.customers.created.
func CustomerSubject(eventType string) string {
	return SubjectCustomers + "." + Token(eventType)
}

// PositionSubject is the subject carrying one agent's positions. An empty
// agent id subscribes to every agent.
func PositionSubject(agentID string) string {
	if agentID == "" {
		return SubjectPositions + ".>"
	}
	return SubjectPositions + "." + Token(agentID)
}

// Token makes s safe as a single subject token: characters outside
// [A-Za-z0-9_-] become '_'.
func Token(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
