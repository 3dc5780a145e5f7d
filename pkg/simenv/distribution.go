package simenv

import (
	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/device"
	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

// distributeData runs the §4.5 data-distribution pass appropriate to the
// resolved cloud model: layer/app-level composition under RaaS, or
// whole-app bundling otherwise.
func (e *Environment) distributeData() error {
	if e.model.RaaS {
		return e.distributeRaaS()
	}
	return e.distributeBundled()
}

func (e *Environment) distributeRaaS() error {
	for _, id := range e.workerIDs {
		d := e.devices[id]
		if d.IsMobile {
			continue
		}
		if !d.HasApp(e.cat.StorageMarker.ID) {
			if err := d.StoreData(e.cat.StorageMarker); err != nil {
				return err
			}
		}
	}

	for _, entry := range e.catalogEntriesExceptMarker() {
		if err := e.seedOnServer(entry); err != nil {
			return err
		}
	}

	for _, id := range e.workerIDs {
		d := e.devices[id]
		dataNum := 1 + e.rng.Intn(18) // [1,19)
		pool := e.catalogEntriesExceptMarker()
		for i := 0; i < dataNum; i++ {
			start := pool[e.rng.Intn(len(pool))]
			e.enrich(d, start)
		}
	}
	return nil
}

func (e *Environment) distributeBundled() error {
	for _, app := range e.cat.AllApps() {
		if app == e.cat.StorageMarker {
			continue
		}
		if err := e.bundlePlaceOnServer(app); err != nil {
			return err
		}
	}

	for _, id := range e.workerIDs {
		d := e.devices[id]
		dataNum := 1 + e.rng.Intn(18)
		for i := 0; i < dataNum; i++ {
			app := e.cat.ArbitraryApp(e.rng, -1)
			if app == e.cat.StorageMarker {
				continue
			}
			e.bundleEnrich(d, app)
		}
	}
	return nil
}

func (e *Environment) catalogEntriesExceptMarker() []*catalog.Data {
	pool := make([]*catalog.Data, 0, len(e.cat.AllLayers())+len(e.cat.AllApps()))
	pool = append(pool, e.cat.AllLayers()...)
	for _, a := range e.cat.AllApps() {
		if a == e.cat.StorageMarker {
			continue
		}
		pool = append(pool, a)
	}
	return pool
}

// seedOnServer picks a random server and walks server ids forward until
// one has enough free memory to host entry, failing Unplaceable if none
// does.
func (e *Environment) seedOnServer(entry *catalog.Data) error {
	if len(e.serverIDs) == 0 {
		return simerr.New("simenv.seedOnServer", simerr.Unplaceable)
	}
	start := e.rng.Intn(len(e.serverIDs))
	for i := 0; i < len(e.serverIDs); i++ {
		id := e.serverIDs[(start+i)%len(e.serverIDs)]
		d := e.devices[id]
		if d.FreeMem >= entry.SizeMB {
			return d.StoreData(entry)
		}
	}
	return simerr.New("simenv.seedOnServer", simerr.Unplaceable)
}

// enrich walks the catalog's id-wraparound successor chain from start
// looking for an entry d doesn't already host and has room for, placing
// it if found. A full wraparound with no placement is not an error — this
// is the best-effort random enrichment pass, not the required seed.
func (e *Environment) enrich(d *device.Device, start *catalog.Data) bool {
	entry := start
	for {
		already := false
		if entry.IsLayer {
			already = d.HasLayer(entry.ID)
		} else {
			already = d.HasApp(entry.ID)
		}
		if !already && d.FreeMem >= entry.SizeMB {
			_ = d.StoreData(entry)
			return true
		}
		next := e.cat.Next(entry)
		if next.ID == start.ID {
			return false
		}
		entry = next
	}
}

// bundlePlaceOnServer walks server ids forward until one has room for
// app plus every env layer it doesn't already host, placing the bundle.
func (e *Environment) bundlePlaceOnServer(app *catalog.Data) error {
	if len(e.serverIDs) == 0 {
		return simerr.New("simenv.bundlePlaceOnServer", simerr.Unplaceable)
	}
	start := e.rng.Intn(len(e.serverIDs))
	for i := 0; i < len(e.serverIDs); i++ {
		id := e.serverIDs[(start+i)%len(e.serverIDs)]
		d := e.devices[id]
		if d.FreeMem >= bundleSize(d, app) {
			return e.bundlePlace(d, app)
		}
	}
	return simerr.New("simenv.bundlePlaceOnServer", simerr.Unplaceable)
}

func bundleSize(d *device.Device, app *catalog.Data) float64 {
	needed := app.SizeMB
	for _, l := range app.EnvLayerData {
		if !d.HasLayer(l.ID) {
			needed += l.SizeMB
		}
	}
	return needed
}

func (e *Environment) bundlePlace(d *device.Device, app *catalog.Data) error {
	if !d.HasApp(app.ID) {
		if err := d.StoreData(app); err != nil {
			return err
		}
	}
	for _, l := range app.EnvLayerData {
		if !d.HasLayer(l.ID) {
			if err := d.StoreData(l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Environment) bundleEnrich(d *device.Device, app *catalog.Data) {
	if d.HasApp(app.ID) {
		return
	}
	if d.FreeMem < bundleSize(d, app) {
		return
	}
	_ = e.bundlePlace(d, app)
}
