package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// writeCatalog materializes CUE sources into a temp catalog dir.
func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const arOpenItemsV1 = `package catalog

contract: ar_open_items: "1": {
	description: "AR open items extract"
	primary_key: ["customer_id"]
	field: customer_id: {
		required: true
		aliases: ["Customer No_", "customer_no"]
		dtype:    "string"
		semantic: "id"
		fill_policy: "fail_on_null"
		critical: true
	}
	field: amount_lcy: {
		required: true
		aliases: ["rem_amt_LCY", "Remaining Amt_ (LCY)"]
		dtype:          "float"
		semantic:       "amount"
		strip_currency: true
		strip_grouping: true
	}
}
`

const arOpenItemsV2 = `package catalog

contract: ar_open_items: "2": {
	description: "AR open items extract, with posting date"
	primary_key: ["customer_id"]
	field: customer_id: {
		required: true
		aliases: ["Customer No_", "customer_no"]
		dtype:    "string"
		semantic: "id"
		fill_policy: "fail_on_null"
		critical: true
	}
	field: amount_lcy: {
		required: true
		aliases: ["rem_amt_LCY"]
		dtype:          "float"
		semantic:       "amount"
		strip_currency: true
		strip_grouping: true
	}
	field: posting_date: {
		aliases: ["Posting Date"]
		dtype:    "date"
		semantic: "date"
		date_formats: ["2006-01-02", "02/01/2006"]
	}
}
`

const egThresholdsV1 = `package catalog

threshold: EG: "1": {
	effective_date: "2025-01-01"
	rule: [{
		type:        "bucket_aggregate"
		value:       500.0
		description: "EG default bucket tolerance"
	}, {
		type:        "bucket_aggregate"
		value:       250.0
		description: "EG voucher bucket tolerance, GL 18412"
		gl_accounts: ["18412"]
		categories: ["Voucher"]
	}]
}

threshold: DEFAULT: "1": {
	effective_date: "2024-06-01"
	rule: [{
		type:        "bucket_aggregate"
		value:       1000.0
		description: "global bucket tolerance"
	}, {
		type:        "line_item"
		value:       2500.0
		description: "global line item tolerance"
	}]
}
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := writeCatalog(t, map[string]string{
		"ar_open_items_v1.cue": arOpenItemsV1,
		"ar_open_items_v2.cue": arOpenItemsV2,
		"thresholds.cue":       egThresholdsV1,
	})
	return NewRegistry(dir)
}

func TestLoadLatestVersion(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Load("ar_open_items", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Version, "unpinned load picks the latest discovered version")
	assert.Len(t, c.Fields, 3)
	assert.NotEmpty(t, c.Hash)
}

func TestLoadExplicitVersion(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Load("ar_open_items", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Version)
	assert.Len(t, c.Fields, 2)
}

func TestLoadPreservesFieldOrder(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Load("ar_open_items", 2)
	require.NoError(t, err)

	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"customer_id", "amount_lcy", "posting_date"}, names,
		"declaration order is load-bearing")
}

func TestLoadEnvOverride(t *testing.T) {
	r := newTestRegistry(t)

	t.Setenv(EnvDatasetVersionKey("ar_open_items"), "1")

	c, err := r.Load("ar_open_items", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Version, "env override pins the version when no explicit one is given")

	pinned, err := r.Load("ar_open_items", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pinned.Version, "explicit version beats the env override")
}

func TestLoadInvalidEnvOverrideIgnored(t *testing.T) {
	r := newTestRegistry(t)

	t.Setenv(EnvDatasetVersionKey("ar_open_items"), "not-a-number")

	c, err := r.Load("ar_open_items", 0)
	require.NoError(t, err, "invalid override is never fatal")
	assert.Equal(t, 2, c.Version, "falls back to latest")
}

func TestLoadCachesByVersion(t *testing.T) {
	r := newTestRegistry(t)

	c1, err := r.Load("ar_open_items", 2)
	require.NoError(t, err)
	c2, err := r.Load("ar_open_items", 2)
	require.NoError(t, err)

	assert.Same(t, c1, c2, "cache hit returns the shared instance")
}

func TestLoadHashDeterminism(t *testing.T) {
	// Two registries over identical content, one with different
	// formatting and an extra comment.
	dirA := writeCatalog(t, map[string]string{"a.cue": arOpenItemsV1})
	reformatted := "// incidental comment\n" + arOpenItemsV1
	dirB := writeCatalog(t, map[string]string{"b.cue": reformatted})

	ca, err := NewRegistry(dirA).Load("ar_open_items", 1)
	require.NoError(t, err)
	cb, err := NewRegistry(dirB).Load("ar_open_items", 1)
	require.NoError(t, err)

	assert.Equal(t, ca.Hash, cb.Hash,
		"hash covers normalized content, not incidental formatting")
}

func TestLoadNotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Load("nonexistent", 0)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "nonexistent")

	_, err = r.Load("ar_open_items", 99)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "99", "message names the attempted version")
}

func TestLoadAliasCollisionReportsEveryPair(t *testing.T) {
	dir := writeCatalog(t, map[string]string{"bad.cue": `package catalog

contract: colliding: "1": {
	field: customer_id: {
		aliases: ["X", "Y"]
		dtype: "string"
	}
	field: vendor_id: {
		aliases: ["X"]
		dtype: "string"
	}
	field: site_id: {
		aliases: ["Y"]
		dtype: "string"
	}
}
`})
	r := NewRegistry(dir)

	_, err := r.Load("colliding", 0)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	var me *MalformedContractError
	require.ErrorAs(t, err, &me)
	assert.True(t, me.HasCode(ErrCodeAliasCollision))

	collisions := 0
	for _, d := range me.Defects {
		if d.Code == ErrCodeAliasCollision {
			collisions++
		}
	}
	assert.Equal(t, 2, collisions, "both colliding aliases reported, not just the first")
	assert.Contains(t, err.Error(), `"X"`)
	assert.Contains(t, err.Error(), `"Y"`)
	assert.Contains(t, err.Error(), "customer_id")
	assert.Contains(t, err.Error(), "vendor_id")
	assert.Contains(t, err.Error(), "site_id")
}

func TestLoadSelfAliasIsNotACollision(t *testing.T) {
	dir := writeCatalog(t, map[string]string{"self.cue": `package catalog

contract: selfref: "1": {
	field: customer_id: {
		aliases: ["customer_id", "Customer No_"]
		dtype: "string"
	}
}
`})
	r := NewRegistry(dir)

	c, err := r.Load("selfref", 0)
	require.NoError(t, err, "a field listing its own canonical name as an alias is fine")
	assert.Equal(t, []string{"customer_id", "Customer No_"}, c.Fields[0].Aliases)
}

func TestLoadThreshold(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.LoadThreshold("EG", 0)
	require.NoError(t, err)
	assert.Equal(t, "EG", c.Country)
	assert.Len(t, c.Rules, 2)
	assert.Equal(t, "2025-01-01", c.EffectiveDate.Format("2006-01-02"))
	assert.NotEmpty(t, c.Hash)

	def, err := r.LoadThreshold(contract.DefaultCountry, 0)
	require.NoError(t, err)
	assert.Equal(t, "DEFAULT", def.Country)
}

func TestLoadThresholdNotFoundIsTyped(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.LoadThreshold("ZZ", 0)
	assert.True(t, IsNotFound(err), "missing country is a typed, non-fatal miss")
}

func TestLoadThresholdRejectsNegativeValue(t *testing.T) {
	dir := writeCatalog(t, map[string]string{"neg.cue": `package catalog

threshold: XX: "1": {
	rule: [{
		type:        "line_item"
		value:       -5.0
		description: "broken"
	}]
}
`})
	r := NewRegistry(dir)

	_, err := r.LoadThreshold("XX", 0)
	require.Error(t, err)
	var me *MalformedContractError
	require.ErrorAs(t, err, &me)
	assert.True(t, me.HasCode(ErrCodeNegativeValue))
}

func TestDiscover(t *testing.T) {
	r := newTestRegistry(t)

	d, err := r.Discover()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, d.Datasets["ar_open_items"], "versions sorted ascending")
	assert.Equal(t, []int{1}, d.Thresholds["EG"])
	assert.Equal(t, []int{1}, d.Thresholds["DEFAULT"])
}

func TestClearCacheForcesReload(t *testing.T) {
	dir := writeCatalog(t, map[string]string{"a.cue": arOpenItemsV1})
	r := NewRegistry(dir)

	c1, err := r.Load("ar_open_items", 1)
	require.NoError(t, err)

	// A new version appears on disk; invisible until the cache is
	// cleared.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(arOpenItemsV2), 0o644))

	_, err = r.Load("ar_open_items", 2)
	assert.True(t, IsNotFound(err), "index is cached until ClearCache")

	r.ClearCache()

	c2, err := r.Load("ar_open_items", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c2.Version)
	assert.NotEqual(t, c1.Hash, c2.Hash)
}

func TestEnvKeyNames(t *testing.T) {
	assert.Equal(t, "SOX_CONTRACT_VERSION_AR_OPEN_ITEMS", EnvDatasetVersionKey("ar_open_items"))
	assert.Equal(t, "SOX_CONTRACT_VERSION_GL_2024_X", EnvDatasetVersionKey("gl-2024.x"))
	assert.Equal(t, "SOX_THRESHOLD_VERSION_EG", EnvThresholdVersionKey("EG"))
}
