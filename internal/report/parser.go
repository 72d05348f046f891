package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rowRE locates "<test name> <value> [unit] [rest]" tuples. The separator
// between name and value is mandatory so names ending in digits (B12, T3)
// are not split.
var rowRE = regexp.MustCompile(`^[ \t]*([A-Za-z][A-Za-z0-9 ().,%/+'-]*?)[ \t:]+(\d+(?:[.,]\d+)?)[ \t]*([0-9A-Za-z%µ][A-Za-z0-9µ/%^*.]*)?(.*)$`)

// rangeRE finds a "low - high" reference interval anywhere in the row tail.
var rangeRE = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:-|–|—|to)\s*(\d+(?:[.,]\d+)?)`)

var (
	patientRE = regexp.MustCompile(`(?i)^\s*(?:patient(?:\s*name)?|name)\s*[:\-]\s*(\S.*)$`)
	dateRE    = regexp.MustCompile(`(?i)^\s*(?:date|reported(?:\s*on)?|collected(?:\s*on)?)\s*[:\-]\s*(\S.*)$`)
	labIDRE   = regexp.MustCompile(`(?i)^\s*lab\s*(?:no|id|ref)\.?\s*[:\-]\s*(\S.*)$`)
)

// Lines whose leading token is one of these are report furniture, not results.
var stopNames = map[string]struct{}{
	"age":             {},
	"sex":             {},
	"gender":          {},
	"date":            {},
	"page":            {},
	"tel":             {},
	"phone":           {},
	"fax":             {},
	"reg no":          {},
	"patient id":      {},
	"ref by":          {},
	"referred by":     {},
	"reference":       {},
	"reference range": {},
	"normal range":    {},
	"biological reference interval": {},
	"range":           {},
	"address":         {},
	"specimen":        {},
	"sample":          {},
	"method":          {},
	"units":           {},
	"unit":            {},
	"test":            {},
	"test name":       {},
	"result":          {},
	"observed value":  {},
	"investigation":   {},
	"report":          {},
}

// Parse converts extracted document text into a validated ParsedReport.
//
// Classification of failures follows the domain taxonomy: a document in which
// no row is even recognizable yields *ParseError; a document whose recognized
// rows all violate domain rules yields *BloodReportError. One surviving row is
// a success, with soft warnings for anything dropped along the way. The whole
// pass is deterministic for identical input bytes.
func Parse(text string) (*ParsedReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "document text is empty"}
	}

	var (
		rep        ParsedReport
		meta       PatientMetadata
		recognized int
		rejected   []string
	)

	for _, line := range strings.Split(text, "\n") {
		if captureMetadata(line, &meta) {
			continue
		}
		m := rowRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := cleanName(m[1])
		if name == "" || isStopName(name) {
			continue
		}
		recognized++

		value, err := parseNumber(m[2])
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: unreadable value %q", name, m[2]))
			continue
		}

		unit := NormalizeUnit(m[3])
		if unit == "" {
			rejected = append(rejected, fmt.Sprintf("%s: value %g has no plausible unit", name, value))
			continue
		}

		low, high, hasRange, err := extractRange(m[4])
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if !hasRange {
			if br, ok := builtinRangeFor(name); ok && br.unit == unit {
				low, high, hasRange = br.low, br.high, true
			}
		}

		if sb, ok := sanityBoundFor(name); ok && sb.unit == unit && (value < sb.low || value > sb.high) {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("dropped %s: %g %s is outside physiological bounds", name, value, unit))
			continue
		}

		row := LabTestResult{Name: name, Value: value, Unit: unit, Flag: FlagNormal}
		if hasRange {
			l, h := low, high
			row.ReferenceLow, row.ReferenceHigh = &l, &h
			switch {
			case value < low:
				row.Flag = FlagLow
			case value > high:
				row.Flag = FlagHigh
			}
		}
		rep.Tests = append(rep.Tests, row)
	}

	if recognized == 0 {
		return nil, &ParseError{Reason: "no lab-value rows found in document text"}
	}
	if len(rep.Tests) == 0 {
		reason := strings.Join(append(rejected, rep.Warnings...), "; ")
		return nil, &BloodReportError{Reason: reason}
	}
	for _, r := range rejected {
		rep.Warnings = append(rep.Warnings, "rejected "+r)
	}
	if meta != (PatientMetadata{}) {
		meta := meta
		rep.Patient = &meta
	}
	return &rep, nil
}

func captureMetadata(line string, meta *PatientMetadata) bool {
	if m := dateRE.FindStringSubmatch(line); m != nil {
		if meta.Date == "" {
			meta.Date = strings.TrimSpace(m[1])
		}
		return true
	}
	if m := labIDRE.FindStringSubmatch(line); m != nil {
		if meta.LabID == "" {
			meta.LabID = strings.TrimSpace(m[1])
		}
		return true
	}
	if m := patientRE.FindStringSubmatch(line); m != nil {
		// A name is words, not a measurement.
		candidate := strings.TrimSpace(m[1])
		if candidate != "" && !strings.ContainsAny(candidate, "0123456789") {
			if meta.Name == "" {
				meta.Name = candidate
			}
			return true
		}
	}
	return false
}

func extractRange(tail string) (low, high float64, ok bool, err error) {
	m := rangeRE.FindStringSubmatch(tail)
	if m == nil {
		return 0, 0, false, nil
	}
	low, lerr := parseNumber(m[1])
	high, herr := parseNumber(m[2])
	if lerr != nil || herr != nil {
		return 0, 0, false, nil
	}
	if low > high {
		return 0, 0, false, fmt.Errorf("reference range low %g above high %g", low, high)
	}
	return low, high, true, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

func cleanName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ":.-")
	return strings.Join(strings.Fields(s), " ")
}

func isStopName(name string) bool {
	_, stop := stopNames[strings.ToLower(name)]
	return stop
}
