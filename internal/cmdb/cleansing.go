package cmdb

import (
	"fmt"
	"strings"

	"ai-force-assess/internal/store"
)

// Cleansing actions recorded in findings.
const (
	ActionNormalize = "normalize"
	ActionDedupe    = "dedupe"
	ActionDefault   = "default"
	ActionFlag      = "flag"
	ActionSuggest   = "suggest" // crew-proposed fix, not applied automatically
)

// environmentAliases normalizes the zoo of environment spellings CMDB
// exports carry.
var environmentAliases = map[string]string{
	"prod":        "production",
	"prd":         "production",
	"production":  "production",
	"live":        "production",
	"stage":       "staging",
	"stg":         "staging",
	"staging":     "staging",
	"preprod":     "staging",
	"pre-prod":    "staging",
	"uat":         "staging",
	"qa":          "test",
	"test":        "test",
	"tst":         "test",
	"testing":     "test",
	"dev":         "development",
	"development": "development",
	"sandbox":     "development",
	"dr":          "dr",
	"disaster recovery": "dr",
}

// osAliases collapses vendor name variations. Ordered so longer aliases win
// before their prefixes ("microsoft windows server" before "windows").
var osAliases = []struct {
	alias     string
	canonical string
}{
	{"microsoft windows server", "Windows Server"},
	{"red hat enterprise linux", "RHEL"},
	{"windows server", "Windows Server"},
	{"win server", "Windows Server"},
	{"windows", "Windows Server"},
	{"red hat", "RHEL"},
	{"redhat", "RHEL"},
	{"rhel", "RHEL"},
	{"centos", "CentOS"},
	{"ubuntu linux", "Ubuntu"},
	{"ubuntu", "Ubuntu"},
	{"suse", "SLES"},
	{"sles", "SLES"},
	{"oracle linux", "Oracle Linux"},
	{"aix", "AIX"},
	{"solaris", "Solaris"},
	{"vmware esxi", "ESXi"},
	{"esxi", "ESXi"},
}

// Cleanse runs the rule pipeline over mapped assets: trim and normalize
// values, default missing fields, and drop duplicate (hostname, ip) rows.
// It returns the surviving assets and a finding per change made.
func Cleanse(tenantID, batchID string, assets []store.Asset) ([]store.Asset, []store.CleansingFinding) {
	var findings []store.CleansingFinding
	record := func(hostname, field, action, before, after, rule string) {
		findings = append(findings, store.CleansingFinding{
			TenantID:    tenantID,
			BatchID:     batchID,
			Hostname:    hostname,
			Field:       field,
			Action:      action,
			BeforeValue: before,
			AfterValue:  after,
			Rule:        rule,
		})
	}

	seen := make(map[string]bool)
	out := make([]store.Asset, 0, len(assets))
	for _, a := range assets {
		// hostnames compare case-insensitively
		if lowered := strings.ToLower(strings.TrimSpace(a.Hostname)); lowered != a.Hostname {
			record(a.Hostname, FieldHostname, ActionNormalize, a.Hostname, lowered, "hostname_lowercase")
			a.Hostname = lowered
		}

		if a.Hostname == "" {
			record("", FieldHostname, ActionFlag, "", "", "missing_hostname")
			out = append(out, a)
			continue
		}

		dupeKey := a.Hostname + "|" + strings.TrimSpace(a.IPAddress)
		if seen[dupeKey] {
			record(a.Hostname, "", ActionDedupe, dupeKey, "", "duplicate_host_ip")
			continue
		}
		seen[dupeKey] = true

		if env := normalizeEnvironment(a.Environment); env != a.Environment {
			record(a.Hostname, FieldEnvironment, ActionNormalize, a.Environment, env, "environment_alias")
			a.Environment = env
		}
		if a.Environment == "" {
			a.Environment = "unknown"
			record(a.Hostname, FieldEnvironment, ActionDefault, "", "unknown", "environment_default")
		}

		if osName, osVersion := normalizeOS(a.OS, a.OSVersion); osName != a.OS || osVersion != a.OSVersion {
			if osName != a.OS {
				record(a.Hostname, FieldOS, ActionNormalize, a.OS, osName, "os_alias")
			}
			if osVersion != a.OSVersion {
				record(a.Hostname, FieldOSVersion, ActionNormalize, a.OSVersion, osVersion, "os_version_split")
			}
			a.OS = osName
			a.OSVersion = osVersion
		}

		if status := strings.ToLower(strings.TrimSpace(a.Status)); status != a.Status {
			record(a.Hostname, FieldStatus, ActionNormalize, a.Status, status, "status_lowercase")
			a.Status = status
		}
		if a.Status == "" {
			a.Status = "discovered"
			record(a.Hostname, FieldStatus, ActionDefault, "", "discovered", "status_default")
		}

		if a.IPAddress == "" {
			record(a.Hostname, FieldIPAddress, ActionFlag, "", "", "missing_ip")
		}
		if a.Owner == "" {
			record(a.Hostname, FieldOwner, ActionFlag, "", "", "missing_owner")
		}

		out = append(out, a)
	}
	return out, findings
}

func normalizeEnvironment(env string) string {
	key := strings.ToLower(strings.TrimSpace(env))
	if canonical, ok := environmentAliases[key]; ok {
		return canonical
	}
	return strings.TrimSpace(env)
}

// normalizeOS canonicalizes the OS name and, when the version rode along in
// the OS column ("Windows Server 2016"), splits it out.
func normalizeOS(osName, osVersion string) (string, string) {
	trimmed := strings.TrimSpace(osName)
	lower := strings.ToLower(trimmed)

	for _, entry := range osAliases {
		if lower == entry.alias {
			return entry.canonical, strings.TrimSpace(osVersion)
		}
		prefix := entry.alias + " "
		if strings.HasPrefix(lower, prefix) {
			rest := strings.TrimSpace(trimmed[len(prefix):])
			if osVersion == "" {
				return entry.canonical, rest
			}
			return entry.canonical, strings.TrimSpace(osVersion)
		}
	}
	return trimmed, strings.TrimSpace(osVersion)
}

// FlaggedRowsJSON renders rows with flag findings as a compact JSON snippet
// for the cleansing crew.
func FlaggedRowsJSON(assets []store.Asset, findings []store.CleansingFinding) string {
	flagged := make(map[string]bool)
	for _, f := range findings {
		if f.Action == ActionFlag && f.Hostname != "" {
			flagged[f.Hostname] = true
		}
	}
	var parts []string
	for _, a := range assets {
		if !flagged[a.Hostname] {
			continue
		}
		parts = append(parts, fmt.Sprintf(
			`{"hostname":%q,"ip_address":%q,"os":%q,"os_version":%q,"environment":%q,"owner":%q}`,
			a.Hostname, a.IPAddress, a.OS, a.OSVersion, a.Environment, a.Owner))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
