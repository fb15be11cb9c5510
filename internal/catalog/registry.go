package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// Registry is the contract store: it discovers contract sources in a
// catalog directory, compiles them on demand, and caches the results
// by (id, version).
//
// Each Registry owns its cache; tests construct isolated registries
// instead of sharing process-global state. Concurrent readers are
// safe: contracts are immutable after insertion, and racing
// first-loads of the same key compute equal values.
type Registry struct {
	dir string

	mu         sync.RWMutex
	index      *catalogIndex
	datasets   map[string]*contract.DatasetContract
	thresholds map[string]*contract.ThresholdContract
}

// catalogIndex holds the built CUE value and the discovered
// id -> sorted version lists. Built once per cache generation.
type catalogIndex struct {
	value      cue.Value
	datasets   map[string][]int
	thresholds map[string][]int
}

// Discovery enumerates the catalog's contents: contract ids mapped to
// their available versions in ascending order.
type Discovery struct {
	Datasets   map[string][]int `json:"datasets"`
	Thresholds map[string][]int `json:"thresholds"`
}

// NewRegistry creates a registry over a catalog directory of CUE
// sources. Nothing is read until the first load or discovery call.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:        dir,
		datasets:   make(map[string]*contract.DatasetContract),
		thresholds: make(map[string]*contract.ThresholdContract),
	}
}

// ClearCache drops every cached contract and the catalog index.
// The next call re-reads the directory. Intended for tests and
// tooling-driven hot reload; this is the registry's only exposed
// mutation.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = nil
	r.datasets = make(map[string]*contract.DatasetContract)
	r.thresholds = make(map[string]*contract.ThresholdContract)
}

// Discover enumerates available contract ids and their sorted version
// lists. The returned maps are copies.
func (r *Registry) Discover() (*Discovery, error) {
	idx, err := r.ensureIndex()
	if err != nil {
		return nil, err
	}
	d := &Discovery{
		Datasets:   make(map[string][]int, len(idx.datasets)),
		Thresholds: make(map[string][]int, len(idx.thresholds)),
	}
	for id, versions := range idx.datasets {
		d.Datasets[id] = append([]int(nil), versions...)
	}
	for country, versions := range idx.thresholds {
		d.Thresholds[country] = append([]int(nil), versions...)
	}
	return d, nil
}

// Load returns the dataset contract for id at the given version.
// version <= 0 means unpinned: the environment override (see
// EnvDatasetVersionKey) is consulted first, then the latest
// discovered version. The returned contract is shared and must be
// treated as read-only.
func (r *Registry) Load(id string, version int) (*contract.DatasetContract, error) {
	idx, err := r.ensureIndex()
	if err != nil {
		return nil, err
	}

	available, ok := idx.datasets[id]
	if !ok {
		return nil, &NotFoundError{Kind: "dataset", ID: id}
	}

	version = resolveVersion(version, EnvDatasetVersionKey(id), available)
	if !containsVersion(available, version) {
		return nil, &NotFoundError{Kind: "dataset", ID: id, Version: version}
	}

	key := cacheKey(id, version)
	r.mu.RLock()
	cached, hit := r.datasets[key]
	r.mu.RUnlock()
	if hit {
		return cached, nil
	}

	body := idx.value.LookupPath(datasetPath(id, version))
	c, err := CompileDatasetContract(id, version, body)
	if err != nil {
		return nil, fmt.Errorf("loading dataset contract %q version %d: %w", id, version, err)
	}

	if defects := ValidateDatasetContract(c); len(defects) > 0 {
		return nil, &MalformedContractError{Kind: "dataset", ID: id, Version: version, Defects: defects}
	}

	hash, err := contract.DatasetContractHash(c)
	if err != nil {
		return nil, fmt.Errorf("hashing dataset contract %q version %d: %w", id, version, err)
	}
	c.Hash = hash

	r.mu.Lock()
	// A racing first-load may have beaten us; either value is
	// equal, keep the existing one for pointer stability.
	if existing, hit := r.datasets[key]; hit {
		c = existing
	} else {
		r.datasets[key] = c
	}
	r.mu.Unlock()

	return c, nil
}

// LoadThreshold returns the threshold contract for a country code (or
// contract.DefaultCountry) at the given version. Resolution follows
// Load: explicit version, then environment override, then latest.
func (r *Registry) LoadThreshold(country string, version int) (*contract.ThresholdContract, error) {
	idx, err := r.ensureIndex()
	if err != nil {
		return nil, err
	}

	available, ok := idx.thresholds[country]
	if !ok {
		return nil, &NotFoundError{Kind: "threshold", ID: country}
	}

	version = resolveVersion(version, EnvThresholdVersionKey(country), available)
	if !containsVersion(available, version) {
		return nil, &NotFoundError{Kind: "threshold", ID: country, Version: version}
	}

	key := cacheKey(country, version)
	r.mu.RLock()
	cached, hit := r.thresholds[key]
	r.mu.RUnlock()
	if hit {
		return cached, nil
	}

	body := idx.value.LookupPath(thresholdPath(country, version))
	c, err := CompileThresholdContract(country, version, body)
	if err != nil {
		return nil, fmt.Errorf("loading threshold contract %q version %d: %w", country, version, err)
	}

	if defects := ValidateThresholdContract(c); len(defects) > 0 {
		return nil, &MalformedContractError{Kind: "threshold", ID: country, Version: version, Defects: defects}
	}

	hash, err := contract.ThresholdContractHash(c)
	if err != nil {
		return nil, fmt.Errorf("hashing threshold contract %q version %d: %w", country, version, err)
	}
	c.Hash = hash

	r.mu.Lock()
	if existing, hit := r.thresholds[key]; hit {
		c = existing
	} else {
		r.thresholds[key] = c
	}
	r.mu.Unlock()

	return c, nil
}

// ensureIndex builds the catalog index on first use. The CUE sources
// are read once per cache generation; ClearCache forces a re-read.
func (r *Registry) ensureIndex() (*catalogIndex, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	idx, err := buildIndex(r.dir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.index == nil {
		r.index = idx
	} else {
		idx = r.index
	}
	r.mu.Unlock()
	return idx, nil
}

// buildIndex loads every CUE file in the catalog directory and
// enumerates the declared contract versions.
func buildIndex(dir string) (*catalogIndex, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading catalog sources: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building catalog sources: %w", err)
	}

	idx := &catalogIndex{
		value:      value,
		datasets:   make(map[string][]int),
		thresholds: make(map[string][]int),
	}

	if err := enumerateVersions(value.LookupPath(cue.ParsePath("contract")), idx.datasets); err != nil {
		return nil, err
	}
	if err := enumerateVersions(value.LookupPath(cue.ParsePath("threshold")), idx.thresholds); err != nil {
		return nil, err
	}

	return idx, nil
}

// enumerateVersions walks <root>.<id>.<version-label> and records each
// id's version list in ascending order. Version labels must be
// positive integers.
func enumerateVersions(root cue.Value, out map[string][]int) error {
	if !root.Exists() {
		return nil
	}
	iter, err := root.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		id := iter.Label()
		verIter, err := iter.Value().Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for verIter.Next() {
			label := verIter.Label()
			v, err := strconv.Atoi(label)
			if err != nil || v < 1 {
				return &MalformedContractError{
					Kind: "catalog",
					ID:   id,
					Defects: []ValidationError{{
						Field:   id,
						Message: fmt.Sprintf("version label %q must be a positive integer", label),
						Code:    ErrCodeBadVersion,
					}},
				}
			}
			out[id] = append(out[id], v)
		}
		sort.Ints(out[id])
	}
	return nil
}

// resolveVersion applies the version resolution order: explicit
// argument, then environment override, then latest discovered.
// An unparseable override is logged and ignored, never fatal.
func resolveVersion(requested int, envKey string, available []int) int {
	if requested > 0 {
		return requested
	}
	if raw, ok := os.LookupEnv(envKey); ok {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			slog.Warn("ignoring invalid contract version override",
				"env", envKey, "value", raw)
		} else {
			return v
		}
	}
	if len(available) == 0 {
		return 0
	}
	return available[len(available)-1]
}

// EnvDatasetVersionKey returns the deterministic environment variable
// name that pins a dataset contract's version.
func EnvDatasetVersionKey(id string) string {
	return "SOX_CONTRACT_VERSION_" + envToken(id)
}

// EnvThresholdVersionKey returns the deterministic environment
// variable name that pins a country's threshold contract version.
func EnvThresholdVersionKey(country string) string {
	return "SOX_THRESHOLD_VERSION_" + envToken(country)
}

// envToken uppercases an id and squashes every non-alphanumeric rune
// to underscore so the result is a portable env var suffix.
func envToken(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func cacheKey(id string, version int) string {
	return fmt.Sprintf("%s@%d", id, version)
}

func containsVersion(versions []int, v int) bool {
	for _, x := range versions {
		if x == v {
			return true
		}
	}
	return false
}

func datasetPath(id string, version int) cue.Path {
	return cue.MakePath(
		cue.Str("contract"),
		cue.Str(id),
		cue.Str(strconv.Itoa(version)),
	)
}

func thresholdPath(country string, version int) cue.Path {
	return cue.MakePath(
		cue.Str("threshold"),
		cue.Str(country),
		cue.Str(strconv.Itoa(version)),
	)
}
