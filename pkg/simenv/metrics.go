package simenv

// ResourceRates summarizes used/capacity ratios for cpu, mem, bw, split
// into servers, other (client) workers, and the combined population.
type ResourceRates struct {
	ServerCPU, ServerMem, ServerBW       float64
	WorkerCPU, WorkerMem, WorkerBW       float64
	CombinedCPU, CombinedMem, CombinedBW float64
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ResourceRates computes the current slot's utilization snapshot.
func (e *Environment) ResourceRates() ResourceRates {
	var sCPU, sMem, sBW, sCPUCap, sMemCap, sBWCap float64
	for _, id := range e.serverIDs {
		d := e.devices[id]
		sCPU += d.Capacity.CPU - d.FreeCPU
		sMem += d.Capacity.Mem - d.FreeMem
		sBW += d.Capacity.BW - d.FreeBW
		sCPUCap += d.Capacity.CPU
		sMemCap += d.Capacity.Mem
		sBWCap += d.Capacity.BW
	}

	serverSet := make(map[int]struct{}, len(e.serverIDs))
	for _, id := range e.serverIDs {
		serverSet[id] = struct{}{}
	}

	var wCPU, wMem, wBW, wCPUCap, wMemCap, wBWCap float64
	for _, id := range e.workerIDs {
		if _, isServer := serverSet[id]; isServer {
			continue
		}
		d := e.devices[id]
		wCPU += d.Capacity.CPU - d.FreeCPU
		wMem += d.Capacity.Mem - d.FreeMem
		wBW += d.Capacity.BW - d.FreeBW
		wCPUCap += d.Capacity.CPU
		wMemCap += d.Capacity.Mem
		wBWCap += d.Capacity.BW
	}

	return ResourceRates{
		ServerCPU: safeDiv(sCPU, sCPUCap), ServerMem: safeDiv(sMem, sMemCap), ServerBW: safeDiv(sBW, sBWCap),
		WorkerCPU: safeDiv(wCPU, wCPUCap), WorkerMem: safeDiv(wMem, wMemCap), WorkerBW: safeDiv(wBW, wBWCap),
		CombinedCPU: safeDiv(sCPU+wCPU, sCPUCap+wCPUCap),
		CombinedMem: safeDiv(sMem+wMem, sMemCap+wMemCap),
		CombinedBW:  safeDiv(sBW+wBW, sBWCap+wBWCap),
	}
}

// DropRate returns 1 - served/tasks for the current slot (0 when no
// tasks were offered this slot, matching a vacuous pass).
func (e *Environment) DropRate() float64 {
	if len(e.newTasks) == 0 {
		return 0
	}
	return 1 - float64(e.servedNum)/float64(len(e.newTasks))
}
