package inventory

import (
	"fmt"
	"strings"

	"ai-force-assess/internal/store"
)

// Severity levels in ascending order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Tech debt categories.
const (
	CategoryEOLOS          = "eol_os"
	CategoryOutdatedOS     = "outdated_os"
	CategoryUndersized     = "undersized"
	CategoryUnknownOwner   = "unknown_owner"
	CategoryIncompleteData = "incomplete_data"
)

// eolRule matches an operating system release that is past end of life.
type eolRule struct {
	os       string // substring match on normalized OS name
	version  string // prefix match on version, empty matches all
	severity string
	score    int
	note     string
}

// End-of-life catalog. Version matching is prefix-based so "2008 R2" matches
// the "2008" rule.
var eolRules = []eolRule{
	{os: "windows server", version: "2003", severity: SeverityCritical, score: 95, note: "Windows Server 2003 reached end of life in 2015"},
	{os: "windows server", version: "2008", severity: SeverityCritical, score: 90, note: "Windows Server 2008/2008 R2 reached end of life in 2020"},
	{os: "windows server", version: "2012", severity: SeverityHigh, score: 75, note: "Windows Server 2012/2012 R2 reached end of life in 2023"},
	{os: "centos", version: "6", severity: SeverityCritical, score: 90, note: "CentOS 6 reached end of life in 2020"},
	{os: "centos", version: "7", severity: SeverityHigh, score: 70, note: "CentOS 7 reached end of life in 2024"},
	{os: "centos", version: "8", severity: SeverityHigh, score: 70, note: "CentOS 8 reached end of life in 2021"},
	{os: "rhel", version: "5", severity: SeverityCritical, score: 90, note: "RHEL 5 is out of extended support"},
	{os: "rhel", version: "6", severity: SeverityHigh, score: 75, note: "RHEL 6 is out of maintenance support"},
	{os: "ubuntu", version: "14.04", severity: SeverityHigh, score: 75, note: "Ubuntu 14.04 LTS standard support ended in 2019"},
	{os: "ubuntu", version: "16.04", severity: SeverityHigh, score: 70, note: "Ubuntu 16.04 LTS standard support ended in 2021"},
	{os: "ubuntu", version: "18.04", severity: SeverityMedium, score: 55, note: "Ubuntu 18.04 LTS standard support ended in 2023"},
	{os: "aix", version: "6", severity: SeverityHigh, score: 80, note: "AIX 6.1 is out of support"},
	{os: "solaris", version: "", severity: SeverityHigh, score: 70, note: "Solaris has no cloud-native migration path"},
}

// AnalyzeTechDebt evaluates one asset against the rule catalog and returns
// its findings. An empty slice means the asset is clean.
func AnalyzeTechDebt(a store.Asset) []store.TechDebtFinding {
	var findings []store.TechDebtFinding
	add := func(category, severity, description string, score int) {
		findings = append(findings, store.TechDebtFinding{
			TenantID:    a.TenantID,
			AssetID:     a.AssetID,
			Category:    category,
			Severity:    severity,
			Description: description,
			Score:       score,
		})
	}

	osName := strings.ToLower(strings.TrimSpace(a.OS))
	osVersion := strings.ToLower(strings.TrimSpace(a.OSVersion))
	for _, rule := range eolRules {
		if !strings.Contains(osName, rule.os) {
			continue
		}
		if rule.version != "" && !strings.HasPrefix(osVersion, rule.version) {
			continue
		}
		add(CategoryEOLOS, rule.severity, fmt.Sprintf("%s %s: %s", a.OS, a.OSVersion, rule.note), rule.score)
		break
	}

	if osName != "" && osVersion == "" {
		add(CategoryOutdatedOS, SeverityLow, "OS version is unknown; support status cannot be verified", 20)
	}

	if a.CPUCores > 0 && a.CPUCores < 2 && strings.EqualFold(a.Environment, "production") {
		add(CategoryUndersized, SeverityMedium, fmt.Sprintf("production asset has only %d CPU core(s)", a.CPUCores), 40)
	}

	if strings.TrimSpace(a.Owner) == "" {
		add(CategoryUnknownOwner, SeverityMedium, "asset has no recorded owner", 35)
	}

	if a.Completeness > 0 && a.Completeness < 0.5 {
		add(CategoryIncompleteData, SeverityMedium, fmt.Sprintf("inventory record is only %.0f%% complete", a.Completeness*100), 30)
	}

	return findings
}

// DebtScore aggregates an asset's findings into a 0-100 score: the maximum
// single finding plus a small premium per additional finding, capped at 100.
func DebtScore(findings []store.TechDebtFinding) int {
	if len(findings) == 0 {
		return 0
	}
	max := 0
	for _, f := range findings {
		if f.Score > max {
			max = f.Score
		}
	}
	score := max + (len(findings)-1)*5
	if score > 100 {
		score = 100
	}
	return score
}
