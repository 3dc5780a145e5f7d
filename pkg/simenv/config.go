// Package simenv is the per-slot environment loop (component E): topology
// and device construction on reset, candidate generation, the greedy-or-
// learned scheduler hand-off, commit, reward/QoS accounting, and telemetry
// accumulation.
package simenv

import "github.com/casperlundberg/openraas-sim/pkg/simerr"

// Config is the configuration record consumed by Environment construction;
// field names map 1:1 onto the fixed config-map keys via JSON tags so a
// config file can be decoded straight into this struct.
type Config struct {
	M int `json:"m"` // number of servers
	N int `json:"n"` // number of clients

	AreaNum          int `json:"area_num"`
	CandidatesNum    int `json:"candidates_num"`     // filestore candidates reported in observation (default 10)
	TaskInfoNum      int `json:"task_info_num"`      // 4: utility, w1, w2, w3
	ComputeTypeNum   int `json:"compute_type_num"`   // worker-type cardinality for the observation
	FilestoreInfoNum int `json:"filestore_info_num"` // 3: bw, latency, jitter

	CloudModel int `json:"cloud_model"` // 0..5: openraas, center, center_raas, edge, edge_raas, edge_cache
	TaskType   int `json:"task_type"`   // -1 random, 0 process, 1 storage, 2 desktop

	WorkerRate    float64 `json:"worker_rate"`
	ComputeAtEdge bool    `json:"compute_at_edge"`

	PublicDataDeduplication bool    `json:"public_data_deduplication"`
	PublicDataRate          float64 `json:"public_data_rate"`
	RaasCache               bool    `json:"raas_cache"`

	NumEpTrain  int `json:"num_ep_train"`
	MaxEpLength int `json:"max_ep_length"`

	Seed                   int64 `json:"seed"`
	DebugMode              bool  `json:"debug_mode"`
	GetStatistics          bool  `json:"get_statistics"`
	PrintStatisticsPerSlot bool  `json:"print_statistics_per_slot"`
}

// DefaultConfig returns a reasonable starting point for the openraas model
// at a small scale, using the natural default for keys that have an
// obvious one (candidates_num=10, task_type=-1).
func DefaultConfig() Config {
	return Config{
		M:                5,
		N:                25,
		AreaNum:          3,
		CandidatesNum:    10,
		TaskInfoNum:      4,
		ComputeTypeNum:   4,
		FilestoreInfoNum: 3,
		CloudModel:       0,
		TaskType:         -1,
		WorkerRate:       0.3,
		ComputeAtEdge:    false,
		PublicDataRate:   0.5,
		NumEpTrain:       1,
		MaxEpLength:      200,
		Seed:             1,
	}
}

// CloudModel is the strategy parameterization chosen over a bare enum
// switch: cloud_model 0..5 resolves to one of these flag combinations.
type CloudModel struct {
	Name string

	// Center restricts the worker set to central servers placed in area 0;
	// clients are placed in areas 1..area_num-1.
	Center bool
	// RaaS enables per-layer composition (filestore candidates drawn from
	// an app's host set, depositories supply missing layers) instead of
	// bundling a whole app+layers on a single device.
	RaaS bool
	// PeerWorkers lets client devices flagged is_worker join the worker
	// set (only true for openraas).
	PeerWorkers bool
	// AreaRestricted limits RaaS filestore candidates to the compute
	// worker's area. Compute candidates are not limited by this flag; they
	// are limited to the client's area by Config.ComputeAtEdge instead.
	AreaRestricted bool
	// OpportunisticCache places an app+layers on a nearby edge device when
	// candidate generation would otherwise drop the task (edge_cache).
	OpportunisticCache bool
}

var cloudModels = [6]CloudModel{
	{Name: "openraas", Center: false, RaaS: true, PeerWorkers: true, AreaRestricted: false, OpportunisticCache: false},
	{Name: "center", Center: true, RaaS: false, PeerWorkers: false, AreaRestricted: false, OpportunisticCache: false},
	{Name: "center_raas", Center: true, RaaS: true, PeerWorkers: false, AreaRestricted: false, OpportunisticCache: false},
	{Name: "edge", Center: false, RaaS: false, PeerWorkers: false, AreaRestricted: true, OpportunisticCache: false},
	{Name: "edge_raas", Center: false, RaaS: true, PeerWorkers: false, AreaRestricted: true, OpportunisticCache: false},
	{Name: "edge_cache", Center: false, RaaS: true, PeerWorkers: false, AreaRestricted: true, OpportunisticCache: true},
}

// clientLayerTTL is the cached-layer eviction countdown for client devices;
// servers use -1 (never evict).
const clientLayerTTL = 5

func resolveCloudModel(idx int) (CloudModel, error) {
	if idx < 0 || idx >= len(cloudModels) {
		return CloudModel{}, simerr.New("simenv.resolveCloudModel", simerr.OutOfRange)
	}
	return cloudModels[idx], nil
}

// ModelName returns the cloud-model name for idx, with a "_deduplication"
// suffix appended when storage-task deduplication is active, for the
// telemetry logger to use verbatim.
func ModelName(idx int, deduplicationActive bool) (string, error) {
	m, err := resolveCloudModel(idx)
	if err != nil {
		return "", err
	}
	if deduplicationActive {
		return m.Name + "_deduplication", nil
	}
	return m.Name, nil
}
