// Package cmdb turns raw CMDB exports into canonical inventory assets:
// parsing, field mapping, and data cleansing.
package cmdb

import (
	"strings"
)

// Canonical inventory fields a CMDB column can map to.
const (
	FieldName        = "name"
	FieldHostname    = "hostname"
	FieldIPAddress   = "ip_address"
	FieldOS          = "os"
	FieldOSVersion   = "os_version"
	FieldEnvironment = "environment"
	FieldCPUCores    = "cpu_cores"
	FieldMemoryMB    = "memory_mb"
	FieldStorageGB   = "storage_gb"
	FieldApplication = "application"
	FieldOwner       = "owner"
	FieldLocation    = "location"
	FieldStatus      = "status"
)

// CanonicalFields lists every mappable field in display order.
var CanonicalFields = []string{
	FieldName, FieldHostname, FieldIPAddress, FieldOS, FieldOSVersion,
	FieldEnvironment, FieldCPUCores, FieldMemoryMB, FieldStorageGB,
	FieldApplication, FieldOwner, FieldLocation, FieldStatus,
}

// synonyms maps normalized column names to canonical fields. Keys are the
// output of Normalize, so lookups tolerate snake_case, camelCase, kebab-case,
// and spacing differences in the source export.
var synonyms = map[string]string{
	"name":          FieldName,
	"asset name":    FieldName,
	"ci name":       FieldName,
	"display name":  FieldName,
	"hostname":      FieldHostname,
	"host name":     FieldHostname,
	"host":          FieldHostname,
	"server name":   FieldHostname,
	"server":        FieldHostname,
	"fqdn":          FieldHostname,
	"computer name": FieldHostname,
	"node name":     FieldHostname,

	"ip address":    FieldIPAddress,
	"ip":            FieldIPAddress,
	"ip addr":       FieldIPAddress,
	"ipv4":          FieldIPAddress,
	"ipv4 address":  FieldIPAddress,
	"primary ip":    FieldIPAddress,
	"mgmt ip":       FieldIPAddress,
	"management ip": FieldIPAddress,

	"os":               FieldOS,
	"operating system": FieldOS,
	"os name":          FieldOS,
	"platform":         FieldOS,
	"os version":       FieldOSVersion,
	"os release":       FieldOSVersion,
	"version":          FieldOSVersion,
	"os level":         FieldOSVersion,

	"environment":   FieldEnvironment,
	"env":           FieldEnvironment,
	"lifecycle":     FieldEnvironment,
	"tier":          FieldEnvironment,
	"deployment":    FieldEnvironment,
	"used for":      FieldEnvironment,

	"cpu cores":       FieldCPUCores,
	"cpu":             FieldCPUCores,
	"cpus":            FieldCPUCores,
	"cores":           FieldCPUCores,
	"core count":      FieldCPUCores,
	"vcpu":            FieldCPUCores,
	"vcpus":           FieldCPUCores,
	"processor count": FieldCPUCores,

	"memory mb":   FieldMemoryMB,
	"memory":      FieldMemoryMB,
	"ram":         FieldMemoryMB,
	"ram mb":      FieldMemoryMB,
	"memory size": FieldMemoryMB,

	"storage gb":  FieldStorageGB,
	"storage":     FieldStorageGB,
	"disk":        FieldStorageGB,
	"disk gb":     FieldStorageGB,
	"disk size":   FieldStorageGB,
	"total disk":  FieldStorageGB,
	"capacity gb": FieldStorageGB,

	"application":      FieldApplication,
	"app":              FieldApplication,
	"app name":         FieldApplication,
	"business app":     FieldApplication,
	"business service": FieldApplication,
	"service":          FieldApplication,

	"owner":           FieldOwner,
	"owned by":        FieldOwner,
	"asset owner":     FieldOwner,
	"contact":         FieldOwner,
	"support contact": FieldOwner,
	"support group":   FieldOwner,
	"managed by":      FieldOwner,

	"location":    FieldLocation,
	"site":        FieldLocation,
	"datacenter":  FieldLocation,
	"data center": FieldLocation,
	"dc":          FieldLocation,
	"region":      FieldLocation,

	"status":           FieldStatus,
	"state":            FieldStatus,
	"lifecycle status": FieldStatus,
	"ci status":        FieldStatus,
	"install status":   FieldStatus,
}

// Normalize lowers a column name and collapses snake_case, kebab-case, and
// camelCase word boundaries into single spaces.
func Normalize(column string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(column))
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == '/':
			b.WriteRune(' ')
		case r >= 'A' && r <= 'Z':
			// camelCase boundary: lower rune preceding an upper rune
			if i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z' {
				b.WriteRune(' ')
			}
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// LookupField resolves a source column to a canonical field. Method is one of
// "exact", "normalized", or "synonym"; ok is false when nothing matched.
func LookupField(column string) (field, method string, ok bool) {
	trimmed := strings.TrimSpace(column)
	lower := strings.ToLower(trimmed)
	for _, f := range CanonicalFields {
		if lower == f {
			return f, "exact", true
		}
	}

	normalized := Normalize(column)
	for _, f := range CanonicalFields {
		if normalized == strings.ReplaceAll(f, "_", " ") {
			return f, "normalized", true
		}
	}

	if f, found := synonyms[normalized]; found {
		return f, "synonym", true
	}
	return "", "", false
}
