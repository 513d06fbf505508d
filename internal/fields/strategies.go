package fields

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// Building blocks shared by the rules. Labels are case-insensitive,
// captured values are not.
const (
	sep       = `\s*[:\-#]?\s*`
	dateValue = `(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\d{1,2}\s+[A-Za-z]{3,9}\.?\s+\d{4}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`
	personVal = `([A-Z][a-z]+(?:[ '\-][A-Z][a-z]+){1,2})`
	phraseVal = `([A-Z][A-Za-z0-9&.,'/ \-]*[A-Za-z0-9.])`
	idPrefix  = `(?i:no\.?|number|num|#)`
)

func label(alternatives string) string {
	return `\b(?i:` + alternatives + `)`
}

func rx(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var (
	holderNameRule = Rule{
		Field: "holderName",
		Patterns: rx(
			label(`full\s+name|holder\s+name|name\s+of\s+holder|employee\s+name|name\s+of\s+employee`)+sep+personVal,
			label(`name|holder`)+sep+personVal,
			label(`given\s+names?`)+sep+`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`,
			label(`surname`)+sep+`([A-Z][a-z]+)`,
		),
	}
	expiryDateRule = Rule{
		Field: "expiryDate",
		Patterns: rx(
			label(`date\s+of\s+expiry|expiry\s+date|expiration\s+date|expiration|expires\s+on|expires|expiry|expire|valid\s+until|valid\s+through|valid\s+to|exp`)+sep+dateValue,
		),
		Date: true,
	}
	issueDateRule = Rule{
		Field: "issueDate",
		Patterns: rx(
			label(`date\s+of\s+issue|issue\s+date|issued\s+on|date\s+issued|issued`)+sep+dateValue,
		),
		Date: true,
	}
	issuingCountryRule = Rule{
		Field: "issuingCountry",
		Patterns: rx(
			label(`issuing\s+country|country\s+of\s+issue|issuing\s+state|issued\s+in`)+sep+`([A-Z][A-Za-z]+(?:\s[A-Z][A-Za-z]+)*)`,
		),
	}
	nationalityRule = Rule{
		Field: "nationality",
		Patterns: rx(
			label(`nationality|citizenship|citizen\s+of`)+sep+`([A-Z][A-Za-z]+(?:\s[A-Z][a-z]+)?)`,
		),
	}
	employerRule = Rule{
		Field: "employer",
		Patterns: rx(
			label(`employer\s+name|employer|company\s+name|company|organization`)+sep+phraseVal,
		),
	}
	employeeIDRule = Rule{
		Field: "employeeId",
		Patterns: rx(
			label(`employee\s*(?:id|number|no\.?)`)+sep+`((?i:emp)-?\d+|\d{4,8})\b`,
			label(`emp\s*id|staff\s*id|id`)+sep+`((?i:emp)-?\d+|\d{4,8})\b`,
		),
		Normalise: strings.ToUpper,
	}
	positionRule = Rule{
		Field: "position",
		Patterns: rx(
			label(`position|job\s+title|role|occupation|designation|title`)+sep+phraseVal,
		),
	}
	startDateRule = Rule{
		Field: "startDate",
		Patterns: rx(
			label(`start\s+date|commencement\s+date|effective\s+date|date\s+of\s+commencement|valid\s+from|start`)+sep+dateValue,
		),
		Date: true,
	}
)

func genderValue(s string) string {
	switch strings.ToUpper(s[:1]) {
	case "M":
		return "Male"
	case "F":
		return "Female"
	}
	return s
}

func entryValue(s string) string {
	switch strings.ToLower(s) {
	case "m", "multiple", "multi":
		return "Multiple"
	case "s", "single", "1":
		return "Single"
	case "d", "double", "2":
		return "Double"
	}
	return s
}

// PassportExtractor extracts passport fields.
func PassportExtractor() *PatternExtractor {
	return NewPatternExtractor("passport", 80, []domain.DocumentType{domain.DocumentTypePassport},
		Rule{
			Field: "passportNumber",
			Patterns: rx(
				label(`passport`)+`\s*`+idPrefix+`?`+sep+`([A-Z]\d{8}|[A-Z]{2}\d{7}|\d{9})\b`,
				label(`document\s*(?:no\.?|number)`)+sep+`([A-Z]\d{8}|[A-Z]{2}\d{7}|\d{9})\b`,
				`(?:^|\s)([A-Z]\d{8}|[A-Z]{2}\d{7})(?:\s|$)`,
			),
		},
		holderNameRule,
		nationalityRule,
		Rule{
			Field:    "dateOfBirth",
			Patterns: rx(label(`date\s+of\s+birth|birth\s+date|dob|born`) + sep + dateValue),
			Date:     true,
		},
		Rule{
			Field:    "placeOfBirth",
			Patterns: rx(label(`place\s+of\s+birth|birthplace|born\s+in`) + sep + `([A-Z][A-Za-z ,'\-]*[A-Za-z])`),
		},
		Rule{
			Field:     "gender",
			Patterns:  rx(label(`sex|gender`) + sep + `(Male|Female|MALE|FEMALE|[MFmf])\b`),
			Normalise: genderValue,
		},
		issuingCountryRule,
		issueDateRule,
		expiryDateRule,
	)
}

// WorkPermitExtractor extracts work permit fields.
func WorkPermitExtractor() *PatternExtractor {
	return NewPatternExtractor("work_permit", 80, []domain.DocumentType{domain.DocumentTypeWorkPermit},
		Rule{
			Field: "permitNumber",
			Patterns: rx(
				label(`(?:work\s+)?permit\s*`+idPrefix)+sep+`([A-Z0-9][A-Z0-9\-]{5,14})\b`,
				label(`authori[sz]ation\s*`+idPrefix)+sep+`([A-Z0-9][A-Z0-9\-]{5,14})\b`,
			),
		},
		employeeIDRule,
		withField(holderNameRule, "employeeName"),
		employerRule,
		withField(positionRule, "jobTitle"),
		startDateRule,
		expiryDateRule,
		Rule{
			Field:    "workLocation",
			Patterns: rx(label(`work\s+location|place\s+of\s+work|location|work\s+site`) + sep + phraseVal),
		},
	)
}

// CertificationExtractor extracts professional certification fields.
func CertificationExtractor() *PatternExtractor {
	return NewPatternExtractor("certification", 80, []domain.DocumentType{domain.DocumentTypeCertification},
		Rule{
			Field: "certificateNumber",
			Patterns: rx(
				label(`certificate\s*`+idPrefix+`|certification\s*`+idPrefix+`|cert(?:ificate)?\s*id`)+sep+`([A-Z0-9][A-Z0-9\-]{5,19})\b`,
				label(`cert`)+sep+`([A-Z0-9][A-Z0-9\-]{5,19})\b`,
			),
		},
		Rule{
			Field:    "certificateName",
			Patterns: rx(label(`certificate\s+name|certification\s+name|course|qualification`) + sep + phraseVal),
		},
		holderNameRule,
		Rule{
			Field: "issuingAuthority",
			Patterns: rx(
				label(`issuing\s+authority|issuing\s+body|issued\s+by|awarded\s+by`)+sep+phraseVal,
				label(`authority`)+sep+phraseVal,
			),
		},
		issueDateRule,
		expiryDateRule,
		Rule{
			Field:    "certificationLevel",
			Patterns: rx(label(`certification\s+level|level|grade`) + sep + `([A-Za-z0-9][A-Za-z0-9 \-]*[A-Za-z0-9])`),
		},
	)
}

// EmploymentContractExtractor extracts employment contract fields.
func EmploymentContractExtractor() *PatternExtractor {
	return NewPatternExtractor("employment_contract", 80, []domain.DocumentType{domain.DocumentTypeEmploymentContract},
		Rule{
			Field:    "contractNumber",
			Patterns: rx(label(`contract\s*`+idPrefix+`|contract\s*id|agreement\s*`+idPrefix) + sep + `([A-Z0-9][A-Z0-9\-]{3,19})\b`),
		},
		withField(holderNameRule, "employeeName"),
		employeeIDRule,
		employerRule,
		positionRule,
		Rule{
			Field:    "department",
			Patterns: rx(label(`department|dept\.?|division`) + sep + phraseVal),
		},
		startDateRule,
		Rule{
			Field:    "endDate",
			Patterns: rx(label(`end\s+date|termination\s+date|contract\s+end|expiry\s+date|valid\s+until|end`) + sep + dateValue),
			Date:     true,
		},
		Rule{
			Field:    "salary",
			Patterns: rx(label(`annual\s+salary|salary|compensation|wage`) + sep + `([$€£]?\s?\d[\d,]*(?:\.\d{2})?(?:\s*(?:USD|EUR|GBP|per\s+(?:year|annum|month|hour)))?)`),
		},
	)
}

// VisaExtractor extracts visa fields.
func VisaExtractor() *PatternExtractor {
	return NewPatternExtractor("visa", 80, []domain.DocumentType{domain.DocumentTypeVisa},
		Rule{
			Field: "visaNumber",
			Patterns: rx(
				label(`visa\s*`+idPrefix)+sep+`([A-Z0-9][A-Z0-9\-]{7,14})\b`,
				label(`control\s*`+idPrefix)+sep+`([A-Z0-9][A-Z0-9\-]{7,14})\b`,
			),
		},
		Rule{
			Field: "visaType",
			Patterns: rx(
				label(`visa\s+type|visa\s+class|category|class`)+sep+`([A-Z0-9][A-Z0-9\-]{0,4})\b`,
				label(`visa\s+type|type`)+sep+`([A-Z][A-Za-z]+(?:\s[A-Z][A-Za-z]+)?)`,
			),
		},
		holderNameRule,
		nationalityRule,
		Rule{
			Field:    "passportNumber",
			Patterns: rx(label(`passport`)+`\s*`+idPrefix+`?`+sep+`([A-Z]\d{8}|[A-Z]{2}\d{7}|\d{9})\b`),
		},
		issuingCountryRule,
		issueDateRule,
		expiryDateRule,
		Rule{
			Field:     "entryType",
			Patterns:  rx(label(`entry\s+type|entries|entry`) + sep + `((?i:multiple|multi|single|double)|[MSD12])\b`),
			Normalise: entryValue,
		},
	)
}

// GeneralExtractor is the fallback for types without a dedicated strategy.
func GeneralExtractor() *PatternExtractor {
	return NewPatternExtractor("general", 1, nil,
		Rule{
			Field:    "documentNumber",
			Patterns: rx(label(`document\s*`+idPrefix+`|reference\s*`+idPrefix+`|ref\.?|id\s*`+idPrefix) + sep + `([A-Z0-9][A-Z0-9\-]{3,19})\b`),
		},
		holderNameRule,
		issueDateRule,
		expiryDateRule,
		Rule{
			Field:    "email",
			Patterns: rx(`([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`),
		},
		Rule{
			Field:    "date",
			Patterns: rx(dateValue),
			Date:     true,
		},
	)
}

func withField(r Rule, field string) Rule {
	r.Field = field
	return r
}
