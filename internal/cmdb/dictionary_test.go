package cmdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "server name", Normalize("Server Name"))
	assert.Equal(t, "server name", Normalize("server_name"))
	assert.Equal(t, "server name", Normalize("server-name"))
	assert.Equal(t, "server name", Normalize("serverName"))
	assert.Equal(t, "ip address", Normalize("  IP_Address  "))
	assert.Equal(t, "os version", Normalize("OS Version"))
}

func TestLookupFieldExact(t *testing.T) {
	field, method, ok := LookupField("hostname")
	assert.True(t, ok)
	assert.Equal(t, FieldHostname, field)
	assert.Equal(t, "exact", method)
}

func TestLookupFieldNormalized(t *testing.T) {
	field, method, ok := LookupField("IP_Address")
	assert.True(t, ok)
	assert.Equal(t, FieldIPAddress, field)
	assert.Equal(t, "normalized", method)

	field, method, ok = LookupField("osVersion")
	assert.True(t, ok)
	assert.Equal(t, FieldOSVersion, field)
	assert.Equal(t, "normalized", method)
}

func TestLookupFieldSynonym(t *testing.T) {
	cases := map[string]string{
		"Server Name":      FieldHostname,
		"FQDN":             FieldHostname,
		"Operating System": FieldOS,
		"vCPUs":            FieldCPUCores,
		"RAM":              FieldMemoryMB,
		"Data Center":      FieldLocation,
		"Business Service": FieldApplication,
		"Install Status":   FieldStatus,
	}
	for column, want := range cases {
		field, method, ok := LookupField(column)
		assert.True(t, ok, "column %q should resolve", column)
		assert.Equal(t, want, field, "column %q", column)
		assert.Equal(t, "synonym", method, "column %q", column)
	}
}

func TestLookupFieldUnknown(t *testing.T) {
	_, _, ok := LookupField("Warranty Expiration")
	assert.False(t, ok)
}
