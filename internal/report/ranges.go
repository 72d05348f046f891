package report

import "strings"

// unitAliases maps the unit spellings seen on real lab printouts (and their
// OCR mangling) to a canonical set. Lookup is case-insensitive.
var unitAliases = map[string]string{
	"g/dl":          "g/dL",
	"gm/dl":         "g/dL",
	"gm%":           "g/dL",
	"gms%":          "g/dL",
	"mg/dl":         "mg/dL",
	"g/l":           "g/L",
	"fl":            "fL",
	"pg":            "pg",
	"%":             "%",
	"u/l":           "U/L",
	"iu/l":          "IU/L",
	"miu/ml":        "mIU/mL",
	"miu/l":         "mIU/L",
	"mmol/l":        "mmol/L",
	"meq/l":         "mEq/L",
	"ng/ml":         "ng/mL",
	"ng/dl":         "ng/dL",
	"pg/ml":         "pg/mL",
	"mm/hr":         "mm/hr",
	"mm/1hr":        "mm/hr",
	"mm/1sthr":      "mm/hr",
	"/cumm":         "/µL",
	"/cmm":          "/µL",
	"/ul":           "/µL",
	"cells/cumm":    "/µL",
	"cells/ul":      "/µL",
	"k/ul":          "10^3/µL",
	"thou/cumm":     "10^3/µL",
	"thousand/cumm": "10^3/µL",
	"10^3/ul":       "10^3/µL",
	"10^3/µl":       "10^3/µL",
	"x10^3/ul":      "10^3/µL",
	"10*3/ul":       "10^3/µL",
	"m/ul":          "10^6/µL",
	"mill/cumm":     "10^6/µL",
	"million/cumm":  "10^6/µL",
	"10^6/ul":       "10^6/µL",
	"10^6/µl":       "10^6/µL",
	"x10^6/ul":      "10^6/µL",
	"10*6/ul":       "10^6/µL",
	"lakh/cumm":     "10^5/µL",
	"lakh/mm3":      "10^5/µL",
}

// NormalizeUnit maps a raw unit token to its canonical spelling. Unknown but
// unit-shaped tokens pass through unchanged; the empty string means the token
// is not a plausible unit at all.
func NormalizeUnit(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.Trim(u, "[](){}.,;")
	if u == "" {
		return ""
	}
	if canon, ok := unitAliases[strings.ToLower(u)]; ok {
		return canon
	}
	if !plausibleUnit(u) {
		return ""
	}
	return u
}

// Words that show up after a value on lab printouts but are not units.
var unitStopWords = map[string]struct{}{
	"high":     {},
	"low":      {},
	"normal":   {},
	"abnormal": {},
	"borderline": {},
	"positive": {},
	"negative": {},
	"male":     {},
	"female":   {},
	"ref":      {},
	"range":    {},
	"value":    {},
	"result":   {},
	"to":       {},
}

func plausibleUnit(u string) bool {
	if len(u) > 12 {
		return false
	}
	if _, stop := unitStopWords[strings.ToLower(u)]; stop {
		return false
	}
	hasLetter := false
	for _, r := range u {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == 'µ':
			hasLetter = true
		case r >= '0' && r <= '9', r == '/', r == '%', r == '^', r == '*', r == '.':
		default:
			return false
		}
	}
	return hasLetter || u == "%"
}

// referenceRange is a builtin adult range used when the document itself does
// not print one. Values follow common clinical reference intervals.
type referenceRange struct {
	low, high float64
	unit      string
}

var builtinRanges = map[string]referenceRange{
	"hemoglobin":        {12.0, 17.5, "g/dL"},
	"hematocrit":        {36.0, 52.0, "%"},
	"wbc":               {4.5, 11.0, "10^3/µL"},
	"rbc":               {3.9, 5.7, "10^6/µL"},
	"platelet count":    {150, 450, "10^3/µL"},
	"mcv":               {80, 100, "fL"},
	"mch":               {27, 33, "pg"},
	"mchc":              {32, 36, "g/dL"},
	"esr":               {0, 20, "mm/hr"},
	"glucose":           {70, 110, "mg/dL"},
	"fasting glucose":   {70, 100, "mg/dL"},
	"creatinine":        {0.6, 1.3, "mg/dL"},
	"urea":              {15, 45, "mg/dL"},
	"total cholesterol": {0, 200, "mg/dL"},
	"hdl":               {40, 90, "mg/dL"},
	"ldl":               {0, 130, "mg/dL"},
	"triglycerides":     {0, 150, "mg/dL"},
	"tsh":               {0.4, 4.5, "mIU/L"},
	"total bilirubin":   {0.2, 1.2, "mg/dL"},
	"alt":               {7, 56, "U/L"},
	"ast":               {10, 40, "U/L"},
}

// sanityBounds are deliberately broad physiological limits. A value outside
// its bound is an extraction artifact (mis-read decimal point, glued digits),
// not a survivable lab result, and the row is dropped with a warning.
var sanityBounds = map[string]referenceRange{
	"hemoglobin":     {0.5, 30, "g/dL"},
	"hematocrit":     {5, 80, "%"},
	"wbc":            {0.1, 300, "10^3/µL"},
	"rbc":            {0.5, 10, "10^6/µL"},
	"platelet count": {1, 2000, "10^3/µL"},
	"esr":            {0, 150, "mm/hr"},
	"glucose":        {5, 1500, "mg/dL"},
	"creatinine":     {0.05, 40, "mg/dL"},
	"tsh":            {0, 500, "mIU/L"},
}

// testAliases folds the spellings labs use for the same measurement.
var testAliases = map[string]string{
	"hb":                      "hemoglobin",
	"hgb":                     "hemoglobin",
	"haemoglobin":             "hemoglobin",
	"hct":                     "hematocrit",
	"pcv":                     "hematocrit",
	"packed cell volume":      "hematocrit",
	"wbc count":               "wbc",
	"total wbc count":         "wbc",
	"white blood cells":       "wbc",
	"total leucocyte count":   "wbc",
	"tlc":                     "wbc",
	"rbc count":               "rbc",
	"red blood cells":         "rbc",
	"total rbc count":         "rbc",
	"platelets":               "platelet count",
	"plt":                     "platelet count",
	"platelet":                "platelet count",
	"blood sugar":             "glucose",
	"blood sugar fasting":     "fasting glucose",
	"fbs":                     "fasting glucose",
	"glucose fasting":         "fasting glucose",
	"serum creatinine":        "creatinine",
	"blood urea":              "urea",
	"cholesterol":             "total cholesterol",
	"serum cholesterol":       "total cholesterol",
	"hdl cholesterol":         "hdl",
	"ldl cholesterol":         "ldl",
	"bilirubin total":         "total bilirubin",
	"sgpt":                    "alt",
	"sgot":                    "ast",
	"erythrocyte sedimentation rate": "esr",
}

func canonicalTestName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), " ")
	if canon, ok := testAliases[n]; ok {
		return canon
	}
	return n
}

func builtinRangeFor(name string) (referenceRange, bool) {
	r, ok := builtinRanges[canonicalTestName(name)]
	return r, ok
}

func sanityBoundFor(name string) (referenceRange, bool) {
	r, ok := sanityBounds[canonicalTestName(name)]
	return r, ok
}
