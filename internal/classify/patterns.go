package classify

import (
	"regexp"

	"github.com/msandoval/tradeterm/pkg/types"
)

// The pattern tables are locale-tagged data: the classifier contract is
// language-independent, only the patterns are localized. The gateway
// currently emits English or Spanish messages depending on the account's
// platform language.

type rejectionPattern struct {
	locale string
	kind   types.RejectionKind
	re     *regexp.Regexp
}

type warningPattern struct {
	locale string
	kind   types.WarningKind
	re     *regexp.Regexp
}

var rejectionPatterns = []rejectionPattern{
	{
		locale: "en",
		kind:   types.RejectionRejected,
		re:     regexp.MustCompile(`(?is)order rejected -? ?reason:\s*(.+)`),
	},
	{
		locale: "es",
		kind:   types.RejectionRejected,
		re:     regexp.MustCompile(`(?is)orden rechazada -? ?causa:\s*(.+)`),
	},
	{
		locale: "en",
		kind:   types.RejectionInsufficientFunds,
		re:     regexp.MustCompile(`(?i)insufficient (?:funds|buying power|equity)`),
	},
	{
		locale: "en",
		kind:   types.RejectionInsufficientFunds,
		re:     regexp.MustCompile(`(?i)available funds are insufficient`),
	},
	{
		locale: "es",
		kind:   types.RejectionInsufficientFunds,
		re:     regexp.MustCompile(`(?i)fondos insuficientes`),
	},
}

var warningPatterns = []warningPattern{
	{
		locale: "en",
		kind:   types.WarningMarketClosed,
		re: regexp.MustCompile(
			`(?is)order will not be placed at the exchange until\s*(?P<ts>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
	},
	{
		locale: "es",
		kind:   types.WarningMarketClosed,
		re: regexp.MustCompile(
			`(?is)orden no se colocar. en el mercado hasta\s*(?P<ts>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
	},
	{
		locale: "en",
		kind:   types.WarningOrderHeld,
		re:     regexp.MustCompile(`(?i)order held while securities are located`),
	},
	{
		locale: "es",
		kind:   types.WarningOrderHeld,
		re:     regexp.MustCompile(`(?i)orden retenida`),
	},
}

var ignorablePatterns = []*regexp.Regexp{
	// Preset adjustments the platform applies on the way in.
	regexp.MustCompile(`(?i)order TIF was set to DAY based on preset`),
	regexp.MustCompile(`(?i)TIF de la orden fijado en DAY`),
}
