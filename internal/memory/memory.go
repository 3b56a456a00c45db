// Package memory implements cross-campaign memory: per-IR-hash
// replay capsules, learned weights, hot regions, and non-reproduction
// counts that bias the next campaign's exploration with principled decay.
package memory

import (
	"encoding/json"
	"sort"
)

// ReplayCapsule is the set of values needed to re-drive the engine to
// reproduce a finding.
type ReplayCapsule struct {
	IRHash                string         `json:"ir_hash"`
	WasmHash              string         `json:"wasm_hash"`
	Seed                  uint64         `json:"seed"`
	FindingDescription    string         `json:"finding_description"`
	TriggerAction         string         `json:"trigger_action"`
	TraceStep             int            `json:"trace_step"`
	ModelGeneration       uint64         `json:"model_generation"`
	InputVector           map[string]any `json:"input_vector"`
	NonReproductionCount  int            `json:"non_reproduction_count"`
}

// LearnedWeight is one (branch, state-hash) -> weight carried across
// campaigns.
type LearnedWeight struct {
	Branch string  `json:"branch"`
	Hash   uint64  `json:"hash"`
	Weight float64 `json:"weight"`
}

// HotRegion tracks a (branch, state-hash) pair's finding history across
// campaigns.
type HotRegion struct {
	Branch       string  `json:"branch"`
	Hash         uint64  `json:"hash"`
	FindingCount int     `json:"finding_count"`
	BoostFactor  float64 `json:"boost_factor"`
}

// Memory is the full persisted state for one IR hash.
type Memory struct {
	IRHash                string          `json:"ir_hash"`
	ReplayCapsules        []ReplayCapsule `json:"replay_capsules"`
	LearnedWeights        []LearnedWeight `json:"learned_weights"`
	HotRegions            []HotRegion     `json:"hot_regions"`
	NonReproductionCounts []int           `json:"non_reproduction_counts"`
	CampaignCount         int             `json:"campaign_count"`
}

// New constructs an empty Memory for irHash.
func New(irHash string) *Memory {
	return &Memory{IRHash: irHash}
}

// Config tunes PrepareNewCampaign's decay behavior.
type Config struct {
	CrossCampaignDecay  float64
	AggressiveDecay     float64
	InvalidationThresh  int
}

// DefaultConfig returns the recommended decay tuning.
func DefaultConfig() Config {
	return Config{CrossCampaignDecay: 0.8, AggressiveDecay: 0.2, InvalidationThresh: 3}
}

// RecordCapsule appends a replay capsule, keeping NonReproductionCounts in
// sync by index.
func (m *Memory) RecordCapsule(c ReplayCapsule) {
	m.ReplayCapsules = append(m.ReplayCapsules, c)
	m.NonReproductionCounts = append(m.NonReproductionCounts, c.NonReproductionCount)
}

// NoteNonReproduction increments the non-reproduction count for the capsule
// at index i, keeping both the capsule's own field and the parallel
// NonReproductionCounts slice in sync.
func (m *Memory) NoteNonReproduction(i int) {
	if i < 0 || i >= len(m.ReplayCapsules) {
		return
	}
	m.ReplayCapsules[i].NonReproductionCount++
	m.NonReproductionCounts[i] = m.ReplayCapsules[i].NonReproductionCount
}

// UpsertWeight records or overwrites a learned weight for (branch, hash).
func (m *Memory) UpsertWeight(branch string, hash uint64, weight float64) {
	for i := range m.LearnedWeights {
		if m.LearnedWeights[i].Branch == branch && m.LearnedWeights[i].Hash == hash {
			m.LearnedWeights[i].Weight = weight
			return
		}
	}
	m.LearnedWeights = append(m.LearnedWeights, LearnedWeight{Branch: branch, Hash: hash, Weight: weight})
}

// MergeHotRegion applies hot-region merge semantics: identical
// (branch, hash) entries accumulate finding count and take the max boost
// factor.
func (m *Memory) MergeHotRegion(branch string, hash uint64, findingCount int, boost float64) {
	for i := range m.HotRegions {
		if m.HotRegions[i].Branch == branch && m.HotRegions[i].Hash == hash {
			m.HotRegions[i].FindingCount += findingCount
			if boost > m.HotRegions[i].BoostFactor {
				m.HotRegions[i].BoostFactor = boost
			}
			return
		}
	}
	m.HotRegions = append(m.HotRegions, HotRegion{Branch: branch, Hash: hash, FindingCount: findingCount, BoostFactor: boost})
}

// PrepareNewCampaign runs campaign-boundary decay sequence:
// increment campaign count, decay every learned weight and hot-region
// boost factor by cfg.CrossCampaignDecay, then apply an additional
// aggressive decay to learned weights whose branch matches an invalidated
// capsule's trigger action.
func (m *Memory) PrepareNewCampaign(cfg Config) {
	m.CampaignCount++

	for i := range m.LearnedWeights {
		m.LearnedWeights[i].Weight *= cfg.CrossCampaignDecay
	}
	for i := range m.HotRegions {
		m.HotRegions[i].BoostFactor *= cfg.CrossCampaignDecay
	}

	invalidatedActions := make(map[string]bool)
	for _, c := range m.ReplayCapsules {
		if c.NonReproductionCount >= cfg.InvalidationThresh {
			invalidatedActions[c.TriggerAction] = true
		}
	}
	if len(invalidatedActions) == 0 {
		return
	}
	for i := range m.LearnedWeights {
		if invalidatedActions[m.LearnedWeights[i].Branch] {
			m.LearnedWeights[i].Weight *= cfg.AggressiveDecay
		}
	}
}

// StartupOrder returns capsules sorted ascending by non-reproduction count
// (most reliable first) and hot regions sorted descending by finding
// count. Both are sorted copies; m is left untouched.
func (m *Memory) StartupOrder() ([]ReplayCapsule, []HotRegion) {
	capsules := append([]ReplayCapsule(nil), m.ReplayCapsules...)
	sort.SliceStable(capsules, func(i, j int) bool {
		return capsules[i].NonReproductionCount < capsules[j].NonReproductionCount
	})
	regions := append([]HotRegion(nil), m.HotRegions...)
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].FindingCount > regions[j].FindingCount
	})
	return capsules, regions
}

// MarshalJSON and UnmarshalJSON are implicit via the exported struct tags;
// ToJSON/FromJSON are thin convenience wrappers used by the sqlite-backed
// Store.
func (m *Memory) ToJSON() ([]byte, error) { return json.Marshal(m) }

// FromJSON parses a Memory previously produced by ToJSON.
func FromJSON(data []byte) (*Memory, error) {
	var m Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
