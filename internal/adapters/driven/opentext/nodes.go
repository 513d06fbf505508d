package opentext

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// Category IDs of the compliance document types on the Content Server.
var categoryIDs = map[domain.DocumentType]string{
	domain.DocumentTypePassport:           "12345",
	domain.DocumentTypeWorkPermit:         "12346",
	domain.DocumentTypeCertification:      "12347",
	domain.DocumentTypeEmploymentContract: "12348",
	domain.DocumentTypeVisa:               "12349",
}

const defaultCategoryID = "12350"

// CategoryID returns the Content Server category of a document type
func CategoryID(t domain.DocumentType) string {
	if id, ok := categoryIDs[t]; ok {
		return id
	}
	return defaultCategoryID
}

// categoryFilter builds the where clause selecting the given types.
func categoryFilter(types []domain.DocumentType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, "categories:{"+CategoryID(t)+"}")
	}
	return strings.Join(parts, " OR ")
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type nodeProperties struct {
	ID               flexString        `json:"id"`
	OriginalID       flexString        `json:"original_id"`
	ParentID         flexString        `json:"parent_id"`
	Name             string            `json:"name"`
	Size             int64             `json:"size"`
	MimeType         string            `json:"mime_type"`
	CreateDate       string            `json:"create_date"`
	ModifyDate       string            `json:"modify_date"`
	CreateUserID     flexString        `json:"create_user_id"`
	ModifyUserID     flexString        `json:"modify_user_id"`
	VersionNumber    int               `json:"version_number"`
	Path             string            `json:"path"`
	Categories       []string          `json:"categories"`
	CustomAttributes map[string]string `json:"custom_attributes"`
}

type node struct {
	ID   flexString `json:"id"`
	Data struct {
		Properties nodeProperties `json:"properties"`
	} `json:"data"`
}

type paging struct {
	Page       int `json:"page"`
	PageTotal  int `json:"page_total"`
	TotalCount int `json:"total_count"`
	Limit      int `json:"limit"`
}

type nodesResponse struct {
	Results    []node `json:"results"`
	Collection struct {
		Paging *paging `json:"paging"`
	} `json:"collection"`
}

// parseTime reads Content Server timestamps, which may lack a zone.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (c *Connector) toReference(n node) *domain.DocumentReference {
	p := n.Data.Properties
	id := string(p.ID)
	if id == "" {
		id = string(n.ID)
	}
	name := p.Name
	if name == "" {
		name = "Document_" + id
	}
	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	now := c.now().UTC()
	created, ok := parseTime(p.CreateDate)
	if !ok {
		created = now
	}
	modified, ok := parseTime(p.ModifyDate)
	if !ok {
		modified = now
	}

	return &domain.DocumentReference{
		ID:         id,
		Name:       name,
		Type:       domain.InferDocumentType(name),
		SizeBytes:  p.Size,
		MimeType:   mimeType,
		CreatedAt:  created,
		ModifiedAt: modified,
		EmployeeID: domain.ExtractEmployeeID(name),
		Department: p.CustomAttributes["department"],
		URL:        c.baseURL + "/api/v2/nodes/" + id + "/content",
	}
}

func (c *Connector) toMetadata(n node) *domain.DocumentMetadata {
	ref := c.toReference(n)
	p := n.Data.Properties
	version := p.VersionNumber
	if version == 0 {
		version = 1
	}
	return &domain.DocumentMetadata{
		DocumentID:       ref.ID,
		Name:             ref.Name,
		Type:             ref.Type,
		SizeBytes:        ref.SizeBytes,
		MimeType:         ref.MimeType,
		CreatedAt:        ref.CreatedAt,
		ModifiedAt:       ref.ModifiedAt,
		CreatedBy:        string(p.CreateUserID),
		ModifiedBy:       string(p.ModifyUserID),
		Version:          version,
		ParentID:         string(p.ParentID),
		Path:             p.Path,
		Categories:       p.Categories,
		CustomAttributes: p.CustomAttributes,
	}
}

// nextPage derives HasMore and the cursor from the collection paging block.
func nextPage(pg *paging, page, returned int) (total int, hasMore bool, cursor string) {
	if pg == nil {
		return returned, false, ""
	}
	total = pg.TotalCount
	if total == 0 {
		total = returned
	}
	current := pg.Page
	if current == 0 {
		current = page
	}
	if current < pg.PageTotal {
		return total, true, strconv.Itoa(current + 1)
	}
	return total, false, ""
}
