// Package tracking annotates snapshot rows with shipment tracking numbers and
// carrier status.
package tracking

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/callstat/schema"
)

var (
	vendorCallPattern = regexp.MustCompile(`\b\d{7}\b`)
	upsOrderPattern   = regexp.MustCompile(`\b(1[12]\d{7})\b`)
	upsNumberPattern  = regexp.MustCompile(`^1Z[0-9A-Z]{16}$`)
	fedexPattern      = regexp.MustCompile(`^(?:\d{12}|\d{15}|\d{20}|96\d{20})$`)
	numberSeparators  = regexp.MustCompile(`[\s;,/-]+`)
)

// Ticket status markers in AllTrackingStatuses.
const (
	statusNoPack       = "NP"
	statusAwaitingShip = "AT"
	binNone            = "nobin"
)

// VendorCall extracts the 7-digit vendor call number from a free-text reference.
func VendorCall(reference string) (string, bool) {
	m := vendorCallPattern.FindString(reference)
	return m, m != ""
}

// UPSOrderNumbers returns the distinct UPS order numbers in text, in order of appearance.
func UPSOrderNumbers(text string) []string {
	var out []string
	for _, m := range upsOrderPattern.FindAllString(text, -1) {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// IsUPS reports whether n looks like a UPS tracking number.
func IsUPS(n string) bool {
	n = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(n)))
	return upsNumberPattern.MatchString(n)
}

// IsFedEx reports whether n looks like a FedEx tracking number.
func IsFedEx(n string) bool {
	return fedexPattern.MatchString(strings.TrimSpace(n))
}

// TrackingNumbers splits a tracking value into the carrier numbers it contains.
func TrackingNumbers(value string) []string {
	var out []string
	for _, tok := range numberSeparators.Split(strings.TrimSpace(value), -1) {
		if tok != "" && (IsUPS(tok) || IsFedEx(tok)) && !slices.Contains(out, tok) {
			out = append(out, tok)
		}
	}
	return out
}

// splitList splits a comma separated ticket column into trimmed, non-empty items.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func last(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[len(items)-1]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// baseTrackingNumber reads the latest pack of a ticket.
func baseTrackingNumber(ts schema.TicketSummary) string {
	lastPack := last(splitList(ts.AllPackNumbers))
	lastStatus := last(splitList(ts.AllTrackingStatuses))
	lastBin := last(splitList(ts.AllBins))

	if lastPack != "" && lastPack != "0" {
		if nums := TrackingNumbers(lastStatus); len(nums) == 1 {
			return nums[0]
		}
		if isDigits(lastStatus) {
			return lastStatus
		}
		if strings.HasSuffix(strings.ToUpper(lastStatus), statusNoPack) {
			return schema.TrackingNotAvailable
		}
	}

	if lastPack == "0" && !strings.EqualFold(lastBin, binNone) {
		var best string
		var bestN int64
		for _, o := range UPSOrderNumbers(ts.CallText) {
			if n, err := strconv.ParseInt(o, 10, 64); err == nil && n > bestN {
				best, bestN = o, n
			}
		}
		if best != "" {
			return best
		}
	}
	return schema.TrackingNotAvailable
}

// TrackingValue determines the value written for a ticket: a tracking number,
// several numbers joined by dashes, or one of the placeholder texts.
func TrackingValue(ts schema.TicketSummary) string {
	value := baseTrackingNumber(ts)

	packs := splitList(ts.AllPackNumbers)
	statuses := splitList(ts.AllTrackingStatuses)
	if len(packs) == 0 || len(statuses) == 0 {
		return value
	}
	lastPack, err := strconv.Atoi(last(packs))
	if err != nil {
		return value
	}
	lastStatus := last(statuses)
	switch {
	case lastPack == 0:
		return schema.TrackingNone
	case strings.EqualFold(lastStatus, statusAwaitingShip):
		return schema.TrackingPackPending
	}
	if nums := TrackingNumbers(lastStatus); len(nums) > 1 {
		return strings.Join(nums, "-")
	}
	return value
}

// LatestParts returns the parts of the last top-level parenthesised group,
// split on "||". Nested parentheses stay inside their part.
func LatestParts(allParts string) []string {
	depth, start := 0, -1
	var segment string
	for i, r := range allParts {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				segment = strings.TrimSpace(allParts[start:i])
			}
		}
	}

	var parts []string
	for p := range strings.SplitSeq(segment, "||") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Match reports whether the tracking value appears in the description or part note.
func Match(value, description, partNote string) bool {
	if value == "" || value == schema.TrackingNotAvailable {
		return false
	}
	needle := strings.ToLower(value)
	return strings.Contains(strings.ToLower(description), needle) ||
		strings.Contains(strings.ToLower(partNote), needle)
}

// Placeholder reports whether value is one of the texts written when no carrier
// number is known.
func Placeholder(value string) bool {
	switch value {
	case "", schema.TrackingNotAvailable, schema.TrackingNone, schema.TrackingPackPending:
		return true
	}
	return false
}
