package memory

import (
	"maps"
	"slices"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

func cloneExtraction(r domain.ExtractionResult) domain.ExtractionResult {
	r.ExtractedFields = maps.Clone(r.ExtractedFields)
	r.TextBlocks = slices.Clone(r.TextBlocks)
	if r.Tables != nil {
		tables := make([]domain.Table, len(r.Tables))
		for i, t := range r.Tables {
			rows := make([][]string, len(t.Rows))
			for j, row := range t.Rows {
				rows[j] = slices.Clone(row)
			}
			if t.Rows == nil {
				rows = nil
			}
			tables[i] = domain.Table{Headers: slices.Clone(t.Headers), Rows: rows}
		}
		r.Tables = tables
	}
	return r
}

func cloneAnalysis(a domain.AnalysisResult) domain.AnalysisResult {
	a.IsValid = clonePtr(a.IsValid)
	a.ExpiryDate = clonePtr(a.ExpiryDate)
	a.IssueDate = clonePtr(a.IssueDate)
	a.DaysUntilExpiry = clonePtr(a.DaysUntilExpiry)
	a.MissingInformation = slices.Clone(a.MissingInformation)
	a.DataQualityIssues = slices.Clone(a.DataQualityIssues)
	a.ComplianceIssues = slices.Clone(a.ComplianceIssues)
	a.Recommendations = slices.Clone(a.Recommendations)
	return a
}

func cloneJob(r domain.SyncJobRecord) domain.SyncJobRecord {
	r.CompletedAt = clonePtr(r.CompletedAt)
	r.LastSyncTimestamp = clonePtr(r.LastSyncTimestamp)
	return r
}

func cloneExecution(e domain.JobExecution) domain.JobExecution {
	e.Result = clonePtr(e.Result)
	return e
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
