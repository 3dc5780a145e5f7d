package runner

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simenv"
)

// maxConcurrentEpisodes bounds the worker pool RunSweep fans episodes out
// across, independent of how many episodes num_ep_train asks for.
const maxConcurrentEpisodes = 8

// PolicyFactory builds a fresh scheduler.Policy for one episode — fresh so
// a learned policy's state never crosses the goroutine boundary between
// independent episodes.
type PolicyFactory func() scheduler.Policy

// RunSweep runs cfg.NumEpTrain independent episodes concurrently, each with
// its own Environment, RNG, and policy instance. Episode i uses seed cfg.Seed+i so runs are
// reproducible yet distinct.
func RunSweep(idPrefix string, cfg simenv.Config, newPolicy PolicyFactory) ([]EpisodeResult, error) {
	n := cfg.NumEpTrain
	if n <= 0 {
		n = 1
	}
	results := make([]EpisodeResult, n)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentEpisodes)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			epCfg := cfg
			epCfg.Seed = cfg.Seed + int64(i)
			id := fmt.Sprintf("%s-%d", idPrefix, i)

			result, err := RunEpisode(id, epCfg, newPolicy())
			if err != nil {
				return fmt.Errorf("episode %s: %w", id, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
