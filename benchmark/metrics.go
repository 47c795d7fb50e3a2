// Package benchmark - Runs the detection pipeline over a photo corpus and records throughput.
package benchmark

import "time"

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario                 `json:"scenario"`
	Timestamp       time.Time                `json:"timestamp"`
	TotalDuration   time.Duration            `json:"total_duration"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	FramesPerSecond float64                  `json:"frames_per_second"`
	MemoryStats     MemoryMetrics            `json:"memory_stats"`
	CPUStats        CPUMetrics               `json:"cpu_stats"`
	LabelCount      int                      `json:"label_count"`
	NothingDetected int                      `json:"nothing_detected"`
	Failures        map[string]int           `json:"failures"`
	ErrorRate       float64                  `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}
