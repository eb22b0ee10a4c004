package export

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"trustops/internal/domain"
	"trustops/internal/engine"
)

// IssuesCSVHeader is the fixed export header.
const IssuesCSVHeader = `Title,Description,Domain,Category,Issue Type,Status,Department`

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// IssuesCSV renders issues as CSV. Every field is double-quoted with
// embedded quotes doubled; an issue without a department renders an
// empty last field. Rows always carry seven fields.
func IssuesCSV(issues []domain.Issue, departmentName func(id string) string) string {
	var b strings.Builder
	b.WriteString(IssuesCSVHeader)
	b.WriteString("\n")
	for _, i := range issues {
		dept := ""
		if i.DepartmentID != nil && departmentName != nil {
			dept = departmentName(*i.DepartmentID)
		}
		fields := []string{i.Title, i.Description, i.Domain, i.Category, i.IssueType, i.Status, dept}
		for n, f := range fields {
			if n > 0 {
				b.WriteString(",")
			}
			b.WriteString(quote(f))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ImportResult reports how an issue CSV import went.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "")
}

// ImportIssues reads a CSV stream and creates one issue per data row.
// The header must contain a title column; description, domain, category
// and issuetype are optional. Row failures are skipped, never rolled
// back.
func ImportIssues(ctx context.Context, e engine.Engine, orgID string, r io.Reader, actorID string) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, errors.New("missing csv header")
	}
	cols := map[string]int{}
	for idx, h := range header {
		cols[normalizeHeader(h)] = idx
	}
	titleIdx, ok := cols["title"]
	if !ok {
		return ImportResult{}, errors.New("csv header missing title column")
	}
	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}
	var res ImportResult
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}
		if titleIdx >= len(record) || strings.TrimSpace(record[titleIdx]) == "" {
			res.Skipped++
			continue
		}
		_, err = e.CreateIssue(ctx, engine.IssueOptions{
			OrgID:       orgID,
			Title:       record[titleIdx],
			Description: field(record, "description"),
			Domain:      field(record, "domain"),
			Category:    field(record, "category"),
			IssueType:   field(record, "issuetype"),
			ActorID:     actorID,
		})
		if err != nil {
			res.Skipped++
			continue
		}
		res.Imported++
	}
	return res, nil
}
