package simenv

import (
	"github.com/casperlundberg/openraas-sim/pkg/device"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

// Next advances one slot: debug-mode error checking, device and
// topology step, task aging with release-on-expiry, and new-task
// collection.
func (e *Environment) Next() error {
	e.lastSlotDropRate = e.DropRate()
	e.lastSlotRates = e.ResourceRates()
	e.lastSlotTasksNum = len(e.newTasks)
	e.lastSlotServedNum = e.servedNum

	if e.cfg.DebugMode {
		for _, id := range e.workerIDs {
			if err := e.devices[id].CheckError(); err != nil {
				return err
			}
		}
	}

	e.newTasks = nil
	e.fsCandidates = nil
	e.currentTask = nil

	genCfg := task.DefaultGenConfig()
	genCfg.Kind = task.KindSelector(e.cfg.TaskType)
	for _, d := range e.devices {
		if err := d.Step(e.rng, e.cat, genCfg, e.allocTaskID); err != nil {
			return err
		}
	}
	e.topo.Step()

	var stillAlive []*task.Task
	for _, t := range e.committed {
		t.Step()
		if t.LifeTime <= 0 {
			if err := e.releaseTask(t); err != nil {
				return err
			}
			continue
		}
		stillAlive = append(stillAlive, t)
	}
	e.committed = stillAlive

	for _, id := range e.clientIDs {
		d := e.devices[id]
		for _, t := range d.NewTasks {
			if t.App == nil {
				t.App = e.cat.ArbitraryApp(e.rng, int(t.Kind))
			}
			e.newTasks = append(e.newTasks, t)
		}
	}

	e.taskIndex = 0
	e.servedNum = 0
	e.slot++
	return nil
}

// releaseTask reverses a committed task's allocations: role-task entries
// on compute, filestore, and every depository, plus bandwidth reservations
// for desktop tasks, dropping it from its client's ReqTasks.
func (e *Environment) releaseTask(t *task.Task) error {
	computeID, _ := t.Provider(0)
	filestoreID, _ := t.Provider(1)

	if compute, ok := e.devices[computeID]; ok {
		if err := compute.ReleaseTask(device.RoleCompute, t); err != nil {
			return err
		}
	}
	if filestore, ok := e.devices[filestoreID]; ok {
		if err := filestore.ReleaseTask(device.RoleFilestore, t); err != nil {
			return err
		}
	}
	for _, depID := range t.Depositories() {
		if dep, ok := e.devices[depID]; ok {
			if err := dep.ReleaseTask(device.RoleDepository, t); err != nil {
				return err
			}
		}
	}

	if t.Kind == task.Desktop {
		client, clientOK := e.devices[t.UserID]
		compute, computeOK := e.devices[computeID]
		if clientOK && computeOK {
			if err := e.topo.ReleaseBW(client.ID, compute.ID, t.Bandwidth(0), client, compute); err != nil {
				return err
			}
		}
		filestore, filestoreOK := e.devices[filestoreID]
		if computeOK && filestoreOK && filestoreID != computeID {
			if err := e.topo.ReleaseBW(compute.ID, filestore.ID, t.Bandwidth(1), compute, filestore); err != nil {
				return err
			}
		}
	}

	if client, ok := e.devices[t.UserID]; ok {
		client.ReqTasks = removeTask(client.ReqTasks, t)
	}
	return nil
}

func removeTask(list []*task.Task, t *task.Task) []*task.Task {
	for i, cand := range list {
		if cand == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
