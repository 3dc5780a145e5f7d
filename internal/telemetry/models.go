// Package telemetry persists episode/slot results and serves them back over
// a read-only HTTP API (component G of the simulator).
package telemetry

import "time"

// Episode is one completed simulation run's flat keyed record.
type Episode struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	CloudModel int       `json:"cloud_model"`
	M          int       `json:"m"`
	N          int       `json:"n"`
	Seed       int64     `json:"seed"`
	Slots      int       `json:"slots"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`

	DropRate float64 `json:"drop_rate"`

	ServerCPURate float64 `json:"server_cpu_rate"`
	ServerMemRate float64 `json:"server_mem_rate"`
	ServerBWRate  float64 `json:"server_bw_rate"`

	WorkerCPURate float64 `json:"worker_cpu_rate"`
	WorkerMemRate float64 `json:"worker_mem_rate"`
	WorkerBWRate  float64 `json:"worker_bw_rate"`

	CombinedCPURate float64 `json:"combined_cpu_rate"`
	CombinedMemRate float64 `json:"combined_mem_rate"`
	CombinedBWRate  float64 `json:"combined_bw_rate"`

	StartDelay     float64 `json:"start_delay"`
	ServiceLatency float64 `json:"service_latency"`
	Speed          float64 `json:"speed"`
	Jilter         float64 `json:"jilter"` // spelling preserved from the keyed telemetry record

	CreatedAt time.Time `json:"created_at"`
}

// SlotSnapshot is one slot's statistics within an episode, recorded only
// when get_statistics is enabled. Its QoS columns hold the most recently
// served task's values, not an average over the slot.
type SlotSnapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	EpisodeID string    `json:"episode_id" gorm:"index"`
	Slot      int       `json:"slot" gorm:"index"`
	Timestamp time.Time `json:"timestamp"`

	TasksNum  int     `json:"tasks_num"`
	ServedNum int     `json:"served_num"`
	DropRate  float64 `json:"drop_rate"`

	ServerCPURate float64 `json:"server_cpu_rate"`
	ServerMemRate float64 `json:"server_mem_rate"`
	ServerBWRate  float64 `json:"server_bw_rate"`

	WorkerCPURate float64 `json:"worker_cpu_rate"`
	WorkerMemRate float64 `json:"worker_mem_rate"`
	WorkerBWRate  float64 `json:"worker_bw_rate"`

	CombinedCPURate float64 `json:"combined_cpu_rate"`
	CombinedMemRate float64 `json:"combined_mem_rate"`
	CombinedBWRate  float64 `json:"combined_bw_rate"`

	StartDelay     float64 `json:"start_delay"`
	ServiceLatency float64 `json:"service_latency"`
	Speed          float64 `json:"speed"`
	Jilter         float64 `json:"jilter"`
}
