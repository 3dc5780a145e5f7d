// Package catalog holds the immutable layer/application inventory every
// simulated episode is built against (component A of the simulator).
//
// A Catalog is constructed by Build once per simulation environment and
// reused across that environment's episode resets; it is never mutated
// except for its per-entry reverse host index, which the device package
// keeps consistent through AddHost/RemoveHost as devices store and evict
// data. It must not be shared across concurrently running episodes:
// each episode owns its own Catalog value.
package catalog

import (
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

// LayerKind enumerates the five container-layer kinds.
type LayerKind int

const (
	OS LayerKind = iota
	Driver
	Library
	Execution
	Compatible
	layerKindCount
)

// AppKind enumerates the three application kinds.
type AppKind int

const (
	Processing AppKind = iota
	Storage
	Desktop
	appKindCount
)

// Data is the common shape of a catalog entry: a layer or an application.
// hosts is the reverse index maintained by the device package's
// store/fetch/remove API; a device id ∈ hosts ⟺ that device currently
// stores the entry.
type Data struct {
	ID      int
	SizeMB  float64
	IsLayer bool
	Layer   LayerKind
	App     AppKind
	// EnvLayers is only meaningful for applications: the ordered list of
	// layer ids the application's container image is built from.
	EnvLayers []int
	// EnvLayerData is EnvLayers pre-resolved to their *Data entries, so
	// device-role code can read layer sizes without threading a *Catalog
	// through every resource check.
	EnvLayerData []*Data

	hosts map[int]struct{}
}

// Hosts returns the device ids currently storing this entry, in no
// particular order.
func (d *Data) Hosts() []int {
	ids := make([]int, 0, len(d.hosts))
	for id := range d.hosts {
		ids = append(ids, id)
	}
	return ids
}

// HasHost reports whether device id currently stores this entry.
func (d *Data) HasHost(id int) bool {
	_, ok := d.hosts[id]
	return ok
}

// AddHost records that device id now stores this entry. Calling AddHost
// twice for the same (entry, host) pair is a Duplicate error.
func (d *Data) AddHost(id int) error {
	if _, ok := d.hosts[id]; ok {
		return simerr.New("catalog.AddHost", simerr.Duplicate)
	}
	d.hosts[id] = struct{}{}
	return nil
}

// RemoveHost forgets that device id stores this entry. Removing an absent
// host is a NotFound error.
func (d *Data) RemoveHost(id int) error {
	if _, ok := d.hosts[id]; !ok {
		return simerr.New("catalog.RemoveHost", simerr.NotFound)
	}
	delete(d.hosts, id)
	return nil
}

// Catalog is the process-episode-lifetime registry of layers and apps.
type Catalog struct {
	layers [][]*Data // indexed by LayerKind, ids dense within each kind
	apps   [][]*Data // indexed by AppKind

	// StorageMarker is the distinguished zero-size storage app used as the
	// universal "storage filestore" capability marker.
	StorageMarker *Data

	byID map[int]*Data // flat id -> entry across layers and apps
}

// layerSpec/appSpec describe one catalog-layout row.
type layerSpec struct {
	kind  LayerKind
	sizes []float64
}

type appSpec struct {
	kind AppKind
	size float64
	// Processing app envs follow §6's "i∈0..2, j∈1..4, k∈4..7" pattern and
	// are generated inline by Build; envFixed holds a row's fixed env.
	envFixed []int // absolute layer ids, used directly when non-nil
}

// Build constructs a fresh Catalog from the fixed layer/app layout. rng is
// used only for desktop app size sampling (N(5000,1000) clipped >=1); the
// layer/app identities and sizes for everything else are deterministic.
func Build(rng *rand.Rand) *Catalog {
	c := &Catalog{
		layers: make([][]*Data, layerKindCount),
		apps:   make([][]*Data, appKindCount),
		byID:   make(map[int]*Data),
	}

	nextID := 0
	addLayer := func(kind LayerKind, size float64) *Data {
		d := &Data{ID: nextID, SizeMB: size, IsLayer: true, Layer: kind, hosts: make(map[int]struct{})}
		c.layers[kind] = append(c.layers[kind], d)
		c.byID[d.ID] = d
		nextID++
		return d
	}

	// OS x3 (100MB each)
	for i := 0; i < 3; i++ {
		addLayer(OS, 100)
	}
	// Driver x5 (50, 200, 200, 200, 200)
	for _, s := range []float64{50, 200, 200, 200, 200} {
		addLayer(Driver, s)
	}
	// Library x8 (50,200,200,200,100,100,100,100)
	for _, s := range []float64{50, 200, 200, 200, 100, 100, 100, 100} {
		addLayer(Library, s)
	}
	// Execution x1 (10MB)
	addLayer(Execution, 10)
	// Compatible x1 (500MB)
	addLayer(Compatible, 500)

	os := c.layers[OS]
	dl := c.layers[Driver]
	ll := c.layers[Library]
	el := c.layers[Execution]
	cl := c.layers[Compatible]

	addApp := func(kind AppKind, size float64, env []int) *Data {
		envData := make([]*Data, 0, len(env))
		for _, id := range env {
			envData = append(envData, c.byID[id])
		}
		d := &Data{ID: nextID, SizeMB: size, IsLayer: false, App: kind, EnvLayers: env, EnvLayerData: envData, hosts: make(map[int]struct{})}
		c.apps[kind] = append(c.apps[kind], d)
		c.byID[d.ID] = d
		nextID++
		return d
	}

	// Processing apps x30 (500MB, env = os[i%3], dl[1+j%4], ll[4+k%4])
	for n := 0; n < 30; n++ {
		i := n % 3
		j := n % 4
		k := n % 4
		env := []int{os[i].ID, dl[1+j].ID, ll[4+k].ID}
		addApp(Processing, 500, env)
	}

	// The single distinguished storage app (0 size, universal marker).
	storage := addApp(Storage, 0, []int{os[0].ID, dl[0].ID, ll[0].ID, el[0].ID})
	c.StorageMarker = storage

	// Desktop apps x20 (N(5000,1000) clipped >=1MB, env = os[1], dl[1], ll[1..3], cl[0])
	for n := 0; n < 20; n++ {
		size := rng.NormFloat64()*1000 + 5000
		if size < 1 {
			size = 1
		}
		llIdx := 1 + n%3
		env := []int{os[1].ID, dl[1].ID, ll[llIdx].ID, cl[0].ID}
		addApp(Desktop, size, env)
	}

	return c
}

// GetByID returns the entry with the given flat id, regardless of kind.
func (c *Catalog) GetByID(id int) (*Data, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, simerr.New("catalog.GetByID", simerr.NotFound)
	}
	return d, nil
}

// LayersOfKind returns all layer entries of the given kind, in id order.
func (c *Catalog) LayersOfKind(kind LayerKind) []*Data { return c.layers[kind] }

// AppsOfKind returns all app entries of the given kind, in id order.
func (c *Catalog) AppsOfKind(kind AppKind) []*Data { return c.apps[kind] }

// AllLayers returns every layer entry, in id order.
func (c *Catalog) AllLayers() []*Data {
	var out []*Data
	for k := LayerKind(0); k < layerKindCount; k++ {
		out = append(out, c.layers[k]...)
	}
	return out
}

// AllApps returns every app entry, in id order.
func (c *Catalog) AllApps() []*Data {
	var out []*Data
	for k := AppKind(0); k < appKindCount; k++ {
		out = append(out, c.apps[k]...)
	}
	return out
}

// ArbitraryLayer returns a uniformly random layer, restricted to the
// LayerKind filter when filter>=0 and chosen over AllLayers when filter<0.
func (c *Catalog) ArbitraryLayer(rng *rand.Rand, filter int) *Data {
	pool := c.AllLayers()
	if filter >= 0 {
		pool = c.layers[LayerKind(filter)]
	}
	return pool[rng.Intn(len(pool))]
}

// ArbitraryApp returns a uniformly random application, restricted to kind
// when filter>=0.
func (c *Catalog) ArbitraryApp(rng *rand.Rand, filter int) *Data {
	pool := c.AllApps()
	if filter >= 0 {
		pool = c.apps[AppKind(filter)]
	}
	return pool[rng.Intn(len(pool))]
}

// Next returns the id-wraparound successor of entry within its own kind and
// category (layer or app), used by the distribution pass to probe
// candidates without ever looping forever.
func (c *Catalog) Next(entry *Data) *Data {
	var pool []*Data
	if entry.IsLayer {
		pool = c.layers[entry.Layer]
	} else {
		pool = c.apps[entry.App]
	}
	for i, d := range pool {
		if d.ID == entry.ID {
			return pool[(i+1)%len(pool)]
		}
	}
	return entry
}

// ClearHosts empties the reverse host index on every layer and app, without
// rebuilding the catalog itself. The environment calls this on episode reset
// so a fresh device population starts with nobody hosting anything, keeping
// invariant 3 (device.id ∈ data.hosts ⟺ data is in that device's stored set)
// intact across resets even though the catalog's identities/sizes persist
// for the life of the owning environment.
func (c *Catalog) ClearHosts() {
	for _, d := range c.byID {
		d.hosts = make(map[int]struct{})
	}
}

// MissingEnvLayers returns the ids from app.EnvLayers not present in have.
func MissingEnvLayers(app *Data, have map[int]struct{}) []int {
	var missing []int
	for _, id := range app.EnvLayers {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
