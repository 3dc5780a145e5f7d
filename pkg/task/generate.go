package task

import (
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/catalog"
)

// KindSelector configures which kind(s) of task a client may generate.
type KindSelector int

const (
	KindAny KindSelector = iota - 1 // uniform 10:60:30 process:storage:desktop mix
	KindProcess
	KindStorage
	KindDesktop
)

// GenConfig bundles the per-slot task generation parameters.
type GenConfig struct {
	EmitProbability float64      // task_emit_prob, default 1.0
	Kind            KindSelector // task_type config key
	// QoSRanges[i] = [low, high] uniform sampling range for QoS weight i.
	QoSRanges [qosWeightsLength][2]float64
}

// DefaultGenConfig returns emit-every-slot generation across a random
// kind mix, with QoS ranges signed by weight polarity (negative-weighted
// dimensions sample from a negative range, positive ones from positive).
func DefaultGenConfig() GenConfig {
	return GenConfig{
		EmitProbability: 1.0,
		Kind:            KindAny,
		QoSRanges: [qosWeightsLength][2]float64{
			WStartDelay:     {-0.05, -0.005},
			WServiceLatency: {-0.05, -0.005},
			WSpeed:          {0.01, 0.2},
			WJitter:         {-0.5, -0.05},
			WLifetime:       {0.1, 1.0},
			WStorage:        {0.001, 0.01},
			WComputation:    {0.05, 0.5},
		},
	}
}

func clippedGaussian(rng *rand.Rand, mean, stddev, min float64) float64 {
	v := mean + rng.NormFloat64()*stddev
	if v < min {
		return min
	}
	return v
}

func sampleQoS(rng *rand.Rand, cfg GenConfig) [qosWeightsLength]float64 {
	var w [qosWeightsLength]float64
	for i, r := range cfg.QoSRanges {
		w[i] = r[0] + rng.Float64()*(r[1]-r[0])
	}
	return w
}

func pickKind(rng *rand.Rand, kind KindSelector) Kind {
	if kind != KindAny {
		return Kind(kind)
	}
	r := rng.Intn(100)
	switch {
	case r < 10:
		return Process
	case r < 70:
		return StorageKind
	default:
		return Desktop
	}
}

// Generate produces one new task for userID according to cfg.
// The task's App field is left nil; the environment fills it in with
// catalog.ArbitraryApp(task.Kind) when collecting new_tasks, matching the python source's "fill missing app fields" pass.
func Generate(rng *rand.Rand, cat *catalog.Catalog, cfg GenConfig, userID, id int) *Task {
	kind := pickKind(rng, cfg.Kind)

	var t *Task
	switch kind {
	case Process:
		cpu := clippedGaussian(rng, 5, 5, 0.1)
		t = New(id, Process, userID, cpu, 5, 1)
	case StorageKind:
		span := int(clippedGaussian(rng, 5, 2, 1))
		t = New(id, StorageKind, userID, 0, 0, span)
		fileCount := int(clippedGaussian(rng, 10, 3, 1))
		seen := make(map[int]struct{}, fileCount)
		for i := 0; i < fileCount; i++ {
			fileID := rng.Intn(99)
			for {
				if _, dup := seen[fileID]; !dup {
					break
				}
				fileID = (fileID + 1) % 99
			}
			seen[fileID] = struct{}{}
			t.Files = append(t.Files, File{FileID: fileID, SizeMB: 500})
		}
		t.Mem = t.TotalFileSize()
	case Desktop:
		cpu := clippedGaussian(rng, 5, 10, 0.1)
		mem := clippedGaussian(rng, 1000, 300, 10)
		span := int(clippedGaussian(rng, 1, 3, 1))
		t = New(id, Desktop, userID, cpu, mem, span)
	}

	t.QoS = sampleQoS(rng, cfg)
	return t
}
