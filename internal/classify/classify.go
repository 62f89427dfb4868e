// Package classify maps broker error/info messages to a category the order
// lifecycle can act on. Classification is a pure function of the message
// text and optional numeric code: no I/O, no mutation, deterministic.
package classify

import (
	"regexp"
	"strings"

	"github.com/msandoval/tradeterm/pkg/types"
)

// Kind is the category of a classified message.
type Kind int

const (
	// Unclassified messages must be treated as genuine, fatal errors;
	// silently swallowing unknown broker errors risks masking real
	// problems.
	Unclassified Kind = iota
	Ignorable
	Warning
	Rejection
)

func (k Kind) String() string {
	switch k {
	case Ignorable:
		return "ignorable"
	case Warning:
		return "warning"
	case Rejection:
		return "rejection"
	default:
		return "unclassified"
	}
}

// Result is the outcome of classifying one message.
type Result struct {
	Kind      Kind
	Warning   *types.Warning   // set when Kind == Warning
	Rejection *types.Rejection // set when Kind == Rejection
}

// informationalCodes are stream codes that are always informational
// regardless of message text: market data farm connection notices
// (2103-2108), data farm inactivity (2119, 2158), delayed-data availability
// (10167) and read-only session notices (2109). They are gated upstream,
// before classification is attempted.
var informationalCodes = map[int]bool{
	2103:  true,
	2104:  true,
	2105:  true,
	2106:  true,
	2107:  true,
	2108:  true,
	2109:  true,
	2119:  true,
	2158:  true,
	10167: true,
}

// InformationalCode reports whether a stream code is always informational.
func InformationalCode(code int) bool {
	return informationalCodes[code]
}

// Message classifies a broker message. Rejection patterns are tried before
// warning patterns: rejection texts are a strict subset of what could
// otherwise loosely match a warning pattern.
func Message(msg string, code int) Result {
	if code != 0 && InformationalCode(code) {
		return Result{Kind: Ignorable}
	}

	for _, p := range rejectionPatterns {
		m := p.re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}

		reason := msg
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			reason = m[1]
		}

		return Result{
			Kind:      Rejection,
			Rejection: &types.Rejection{Kind: p.kind, Reason: cleanReason(reason)},
		}
	}

	for _, p := range warningPatterns {
		m := p.re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}

		w := &types.Warning{Kind: p.kind}
		if idx := p.re.SubexpIndex("ts"); idx >= 0 && idx < len(m) {
			w.Until = m[idx]
		}

		return Result{Kind: Warning, Warning: w}
	}

	for _, re := range ignorablePatterns {
		if re.MatchString(msg) {
			return Result{Kind: Ignorable}
		}
	}

	return Result{Kind: Unclassified}
}

var (
	breakTags  = regexp.MustCompile(`(?i)<br\s*/?>|</br>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// cleanReason strips embedded line-break markup from a captured rejection
// reason and collapses the remaining whitespace.
func cleanReason(reason string) string {
	reason = breakTags.ReplaceAllString(reason, " ")
	reason = whitespace.ReplaceAllString(reason, " ")
	return strings.TrimSpace(reason)
}
