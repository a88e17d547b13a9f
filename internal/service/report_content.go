package service

import (
	"fmt"
	"strings"

	"github.com/yakoovad/council-tenders/internal/model"
)

var reportTitlePrefix = map[model.ReportType]string{
	model.ReportTypeProgress:   "Progress Report",
	model.ReportTypeFinancial:  "Financial Analysis",
	model.ReportTypeQuality:    "Quality & Safety Report",
	model.ReportTypeCompletion: "Completion Report",
}

func reportTitle(t model.ReportType, projectTitle string) string {
	return reportTitlePrefix[t] + " - " + projectTitle
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// settled counts packages that no longer take bids.
func settled(f *model.ProjectFigures) int64 {
	return f.AwardedPackages + f.ClosedPackages
}

func progressAdvice(f *model.ProjectFigures) []string {
	var res []string
	switch p := percent(settled(f), f.TotalPackages); {
	case p < 25:
		res = append(res, "Project is in early stages. Focus on completing initial planning and mobilization.")
	case p < 50:
		res = append(res, "Project is progressing steadily. Ensure quality control measures are in place.")
	case p < 75:
		res = append(res, "Project is in execution phase. Monitor timelines and resource allocation.")
	default:
		res = append(res, "Project is nearing completion. Prepare for handover and final inspections.")
	}
	if f.OpenPackages > 0 {
		res = append(res, "Complete bidding process for remaining packages to avoid delays.")
	}
	return res
}

func financialAdvice(f *model.ProjectFigures) []string {
	variance := percent(f.AwardedValue-f.EstimatedCost, f.EstimatedCost)
	switch {
	case f.EstimatedCost == 0:
		return []string{"No package carries a cost estimate. Add estimates to track budget variance."}
	case variance > 10:
		return []string{"Budget exceeds estimates significantly. Review scope and requirements."}
	case variance < -10:
		return []string{"Project is under budget. Consider scope enhancements or quality improvements."}
	}
	return []string{"Budget is well-managed within acceptable variance ranges."}
}

func writeTeam(b *strings.Builder, f *model.ProjectFigures) {
	if f.TeamName == "" {
		b.WriteString("Team: not formed\n")
		return
	}
	fmt.Fprintf(b, "Team: %s (%s, %d members)\n", f.TeamName, f.TeamStatus, f.TeamMembers)
}

func writeAdvice(b *strings.Builder, advice []string) {
	b.WriteString("\nRecommendations:\n")
	for _, a := range advice {
		fmt.Fprintf(b, "- %s\n", a)
	}
}

// renderReport turns the project snapshot into the plain-text body of a
// generated report. Amounts are in minor currency units.
func renderReport(t model.ReportType, f *model.ProjectFigures) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Auto-generated %s report for %s\n", t, f.Title)
	fmt.Fprintf(&b, "Status: %s, %s to %s\n\n", f.Status, f.StartDate.Format("2006-01-02"), f.EndDate.Format("2006-01-02"))

	switch t {
	case model.ReportTypeProgress:
		fmt.Fprintf(&b, "Packages: %d total, %d open, %d awarded, %d closed\n",
			f.TotalPackages, f.OpenPackages, f.AwardedPackages, f.ClosedPackages)
		fmt.Fprintf(&b, "Progress: %.1f%%\n", percent(settled(f), f.TotalPackages))
		fmt.Fprintf(&b, "Bids: %d total, %d awarded, acceptance rate %.1f%%\n",
			f.TotalBids, f.AwardedBids, percent(f.AwardedBids, f.TotalBids))
		writeTeam(&b, f)
		writeAdvice(&b, progressAdvice(f))

	case model.ReportTypeFinancial:
		fmt.Fprintf(&b, "Estimated cost: %s\n", formatMinor(f.EstimatedCost))
		fmt.Fprintf(&b, "Awarded value: %s\n", formatMinor(f.AwardedValue))
		fmt.Fprintf(&b, "Variance: %s (%.1f%%)\n",
			formatSigned(f.AwardedValue-f.EstimatedCost), percent(f.AwardedValue-f.EstimatedCost, f.EstimatedCost))
		fmt.Fprintf(&b, "Average bid: %.2f\n", f.AverageBid/100)
		writeAdvice(&b, financialAdvice(f))

	case model.ReportTypeQuality:
		fmt.Fprintf(&b, "Bids reviewed: %d of %d\n", f.TotalBids-f.ActiveBids, f.TotalBids)
		fmt.Fprintf(&b, "Rejected: %d, withdrawn: %d\n", f.RejectedBids, f.WithdrawnBids)
		writeTeam(&b, f)

	case model.ReportTypeCompletion:
		fmt.Fprintf(&b, "Packages settled: %d of %d\n", settled(f), f.TotalPackages)
		fmt.Fprintf(&b, "Awarded value: %s across %d contracts\n", formatMinor(f.AwardedValue), f.AwardedBids)
		writeTeam(&b, f)
	}

	return b.String()
}

func formatSigned(v int64) string {
	if v < 0 {
		return "-" + formatMinor(-v)
	}
	return formatMinor(v)
}
