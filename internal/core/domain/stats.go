package domain

import (
	"sort"
	"time"
)

// DefaultQueryLimit caps document queries that give no limit
const DefaultQueryLimit = 50

// MaxQueryLimit is the largest page a document query may ask for
const MaxQueryLimit = 500

// DocumentFilter narrows a document query
type DocumentFilter struct {
	Type               DocumentType     `json:"type,omitempty"`
	Status             ComplianceStatus `json:"status,omitempty"`
	ExpiringWithinDays *int             `json:"expiring_within_days,omitempty"`
	RequiresReview     *bool            `json:"requires_review,omitempty"`
	Limit              int              `json:"limit"`
	Offset             int              `json:"offset"`
}

// Normalize clamps paging to sane bounds
func (f *DocumentFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Matches reports whether an analysis passes the filter, as seen from now
func (f *DocumentFilter) Matches(a *AnalysisResult, now time.Time) bool {
	if f.Type != "" && a.DocumentType != f.Type {
		return false
	}
	if f.Status != "" && a.ComplianceStatus != f.Status {
		return false
	}
	if f.RequiresReview != nil && a.RequiresManualReview != *f.RequiresReview {
		return false
	}
	if f.ExpiringWithinDays != nil {
		if a.ExpiryDate == nil {
			return false
		}
		days := DaysBetween(now, *a.ExpiryDate)
		if days < 0 || days > *f.ExpiringWithinDays {
			return false
		}
	}
	return true
}

// TypeCount is the number of documents of one type
type TypeCount struct {
	DocumentType DocumentType `json:"document_type"`
	Count        int          `json:"count"`
}

// DepartmentCompliance summarises compliance within one department
type DepartmentCompliance struct {
	Department     string  `json:"department"`
	TotalDocuments int     `json:"total_documents"`
	Compliant      int     `json:"compliant"`
	NonCompliant   int     `json:"non_compliant"`
	ComplianceRate float64 `json:"compliance_rate"`
}

// Stats is the dashboard summary across all analysed documents
type Stats struct {
	TotalDocuments       int                    `json:"total_documents"`
	ValidDocuments       int                    `json:"valid_documents"`
	ExpiredDocuments     int                    `json:"expired_documents"`
	ExpiringSoon         int                    `json:"expiring_soon"`
	AverageScore         float64                `json:"average_score"`
	RequiresReview       int                    `json:"requires_review"`
	DegradedDocuments    int                    `json:"degraded_documents"`
	TypeDistribution     []TypeCount            `json:"type_distribution"`
	DepartmentCompliance []DepartmentCompliance `json:"department_compliance"`
	GeneratedAt          time.Time              `json:"generated_at"`
}

// DocumentDetail joins the stored extraction and analysis of one document
type DocumentDetail struct {
	DocumentID string            `json:"document_id"`
	Analysis   *AnalysisResult   `json:"analysis"`
	Extraction *ExtractionResult `json:"extraction,omitempty"`
}

// ComputeStats aggregates analyses in memory as seen from now.
// Documents without a department are left out of the department breakdown.
func ComputeStats(analyses []*AnalysisResult, now time.Time) *Stats {
	stats := &Stats{
		TypeDistribution:     []TypeCount{},
		DepartmentCompliance: []DepartmentCompliance{},
		GeneratedAt:          now,
	}
	if len(analyses) == 0 {
		return stats
	}

	types := make(map[DocumentType]int)
	depts := make(map[string]*DepartmentCompliance)
	scoreSum := 0

	for _, a := range analyses {
		stats.TotalDocuments++
		scoreSum += a.DocumentScore
		types[a.DocumentType]++

		if a.IsValid != nil && *a.IsValid {
			stats.ValidDocuments++
		}
		if a.IsExpired {
			stats.ExpiredDocuments++
		}
		if a.ExpiryDate != nil {
			days := DaysBetween(now, *a.ExpiryDate)
			if days >= 0 && days <= ExpiringSoonWindowDays {
				stats.ExpiringSoon++
			}
		}
		if a.RequiresManualReview {
			stats.RequiresReview++
		}
		if a.Degraded {
			stats.DegradedDocuments++
		}

		if a.Department == "" {
			continue
		}
		d, ok := depts[a.Department]
		if !ok {
			d = &DepartmentCompliance{Department: a.Department}
			depts[a.Department] = d
		}
		d.TotalDocuments++
		switch a.ComplianceStatus {
		case ComplianceCompliant:
			d.Compliant++
		case ComplianceNonCompliant:
			d.NonCompliant++
		}
	}

	stats.AverageScore = float64(scoreSum) / float64(stats.TotalDocuments)

	for t, n := range types {
		stats.TypeDistribution = append(stats.TypeDistribution, TypeCount{DocumentType: t, Count: n})
	}
	sort.Slice(stats.TypeDistribution, func(i, j int) bool {
		if stats.TypeDistribution[i].Count != stats.TypeDistribution[j].Count {
			return stats.TypeDistribution[i].Count > stats.TypeDistribution[j].Count
		}
		return stats.TypeDistribution[i].DocumentType < stats.TypeDistribution[j].DocumentType
	})

	for _, d := range depts {
		d.ComplianceRate = ComplianceRate(d.Compliant, d.TotalDocuments)
		stats.DepartmentCompliance = append(stats.DepartmentCompliance, *d)
	}
	sort.Slice(stats.DepartmentCompliance, func(i, j int) bool {
		return stats.DepartmentCompliance[i].Department < stats.DepartmentCompliance[j].Department
	})

	return stats
}

// ComplianceRate returns compliant/total as a percentage rounded to two decimals
func ComplianceRate(compliant, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(compliant)*10000/float64(total)+0.5)) / 100
}
