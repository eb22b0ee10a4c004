package engine

import (
	"context"
	"errors"
)

// DashboardStats aggregates the KPI numbers shown on the landing page.
type DashboardStats struct {
	Issues        int            `json:"issues"`
	OpenIssues    int            `json:"open_issues"`
	Stakeholders  int            `json:"stakeholders"`
	Assets        int            `json:"assets"`
	Risks         int            `json:"risks"`
	Audits        int            `json:"audits"`
	IssuesByState map[string]int `json:"issues_by_status"`
	RisksByBand   map[string]int `json:"risks_by_band"`
	AuditsByState map[string]int `json:"audits_by_status"`
}

func (e Engine) Dashboard(ctx context.Context, orgID string) (DashboardStats, error) {
	if e.Config == nil {
		return DashboardStats{}, errors.New("config not loaded")
	}
	stats := DashboardStats{
		RisksByBand: map[string]int{"low": 0, "medium": 0, "high": 0, "critical": 0},
	}
	var err error
	if stats.IssuesByState, err = e.Repo.CountIssuesByStatus(ctx, orgID); err != nil {
		return DashboardStats{}, err
	}
	for status, n := range stats.IssuesByState {
		stats.Issues += n
		if status == "open" || status == "in_review" {
			stats.OpenIssues += n
		}
	}
	byScore, err := e.Repo.CountRisksByScore(ctx, orgID)
	if err != nil {
		return DashboardStats{}, err
	}
	for score, n := range byScore {
		stats.Risks += n
		stats.RisksByBand[e.Config.Band(score)] += n
	}
	if stats.AuditsByState, err = e.Repo.CountAuditsByStatus(ctx, orgID); err != nil {
		return DashboardStats{}, err
	}
	for _, n := range stats.AuditsByState {
		stats.Audits += n
	}
	row := e.DB.QueryRowContext(ctx, `SELECT count(*) FROM stakeholders WHERE org_id=?`, orgID)
	if err := row.Scan(&stats.Stakeholders); err != nil {
		return DashboardStats{}, err
	}
	row = e.DB.QueryRowContext(ctx, `SELECT count(*) FROM assets WHERE org_id=?`, orgID)
	if err := row.Scan(&stats.Assets); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}
