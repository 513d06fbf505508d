package domain

// ScoreInputs are the findings that feed the document score and the manual
// review decision.
type ScoreInputs struct {
	OCRConfidence    float64
	Inconsistencies  int
	MissingFields    int
	ComplianceIssues int
	IsExpired        bool
	IsExpiringSoon   bool
	RiskLevel        RiskLevel
}

// CalculateDocumentScore grades a document from 0 to 100.
// Penalties accumulate; the score never goes below zero.
func CalculateDocumentScore(in ScoreInputs) int {
	score := 100

	if in.OCRConfidence < 0.9 {
		score -= 10
	}
	if in.OCRConfidence < 0.7 {
		score -= 20
	}

	score -= in.Inconsistencies * 5
	score -= in.MissingFields * 3

	if in.IsExpired {
		score -= 30
	}
	if in.IsExpiringSoon {
		score -= 10
	}

	switch in.RiskLevel {
	case RiskHigh:
		score -= 25
	case RiskMedium:
		score -= 10
	}

	score -= in.ComplianceIssues * 5

	if score < 0 {
		return 0
	}
	return score
}

// RequiresManualReview decides whether a human must look at the document.
func RequiresManualReview(in ScoreInputs) bool {
	return in.OCRConfidence < 0.8 ||
		in.Inconsistencies > 0 ||
		in.RiskLevel == RiskHigh ||
		in.MissingFields > 2 ||
		in.IsExpired ||
		in.ComplianceIssues > 0
}

// ScoreInputs collects the scoring findings of an analysis
func (a *AnalysisResult) ScoreInputs() ScoreInputs {
	return ScoreInputs{
		OCRConfidence:    a.OCRConfidence,
		Inconsistencies:  len(a.DataQualityIssues),
		MissingFields:    len(a.MissingInformation),
		ComplianceIssues: len(a.ComplianceIssues),
		IsExpired:        a.IsExpired,
		IsExpiringSoon:   a.IsExpiringSoon,
		RiskLevel:        a.RiskLevel,
	}
}

// ApplyScore sets DocumentScore from the current findings.
func (a *AnalysisResult) ApplyScore() {
	a.DocumentScore = CalculateDocumentScore(a.ScoreInputs())
}
