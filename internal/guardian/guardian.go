// Package guardian is a long-running governor that prevents runaway
// LLM-client/CLI subprocesses from exhausting memory: a monitor thread
// classifies and admits critical processes, a queue-processor thread
// enforces per-type memory/concurrency caps and a global 85%/70%
// kill-lowest-priority watermark, terminating survivors with SIGTERM
// then SIGKILL.
//
// Grounded on original_source/DHT/process_guardian.py's ProcessGuardian
// (monitor_processes/_process_queue dual-thread design, PROCESS_TYPE_CONFIGS,
// CRITICAL_PROCESSES, kill_process's terminate-then-kill grace period,
// and its JSON state file), ported onto
// github.com/shirou/gopsutil/v3/process for process enumeration.
package guardian

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Defaults mirror process_guardian.py's module-level constants.
const (
	DefaultTimeout          = 15 * time.Minute
	DefaultMaxMemoryMB      = 1024
	DefaultCheckInterval    = 5 * time.Second
	DefaultMaxConcurrent    = 3
	DefaultMaxTotalMemoryMB = 3072
	DefaultMaxQueueSize     = 50

	highWatermarkRatio  = 0.85
	lowWatermarkRatio   = 0.70
	terminateGrace      = 3 * time.Second
	memorySampleEvery   = 3 // sample live RSS once every N ticks, cached otherwise
	duplicateCheckEvery = 4 // kill duplicate processes on a slower cadence than watermark eviction
)

// TypeConfig is a per-process-type override, e.g. Node.js's stricter
// memory ceiling (PROCESS_TYPE_CONFIGS in the source).
type TypeConfig struct {
	MaxMemoryMB   int64
	MaxConcurrent int
	Priority      int // lower runs first when queued, lower killed first under pressure
}

// DefaultTypeConfigs reproduces PROCESS_TYPE_CONFIGS verbatim.
func DefaultTypeConfigs() map[string]TypeConfig {
	return map[string]TypeConfig{
		"node": {MaxMemoryMB: 768, MaxConcurrent: 2, Priority: 0},
		"npm":  {MaxMemoryMB: 768, MaxConcurrent: 1, Priority: 0},
		"v8":   {MaxMemoryMB: 768, MaxConcurrent: 2, Priority: 0},
	}
}

// DefaultCriticalProcesses reproduces CRITICAL_PROCESSES,
// generalized from the source's lint/test/package-manager tooling to
// this system's own LLM-client/CLI process names.
func DefaultCriticalProcesses() []string {
	return []string{"enchant", "translator", "llmclient"}
}

// Config configures one Guardian instance.
type Config struct {
	ProcessName      string // substring match against process name
	CmdPattern       *regexp.Regexp
	Timeout          time.Duration
	MaxMemoryMB      int64
	KillDuplicates   bool
	MaxConcurrent    int
	MaxTotalMemoryMB int64
	MaxQueueSize     int
	CheckInterval    time.Duration
	StateFilePath    string
	TypeConfigs      map[string]TypeConfig
	CriticalNames    []string
}

func (c *Config) fillDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxMemoryMB == 0 {
		c.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxTotalMemoryMB == 0 {
		c.MaxTotalMemoryMB = DefaultMaxTotalMemoryMB
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.TypeConfigs == nil {
		c.TypeConfigs = DefaultTypeConfigs()
	}
	if c.CriticalNames == nil {
		c.CriticalNames = DefaultCriticalProcesses()
	}
	if c.StateFilePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.StateFilePath = filepath.Join(home, ".enchant_guardian", "monitored_processes.json")
	}
}

// processInfo is the in-memory record for a tracked process.
type processInfo struct {
	PID       int32
	Name      string
	Cmdline   string
	MemoryMB  float64
	StartTime time.Time
	CreateMS  int64
}

// typeLimits is the resolved per-type ceiling for a process name.
type typeLimits struct {
	MaxMemoryMB   int64
	MaxConcurrent int
	Priority      int
}

// Guardian monitors and bounds critical subprocess resource usage.
type Guardian struct {
	cfg Config
	log *zap.Logger

	mu            sync.Mutex
	active        map[int32]*processInfo
	queue         []*processInfo
	monitoredPIDs map[int32]bool
	memCheckTick  int
	dupCheckTick  int

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Guardian with defaults filled in; logger defaults to a
// no-op logger.
func New(cfg Config, logger *zap.Logger) *Guardian {
	cfg.fillDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guardian{
		cfg:           cfg,
		log:           logger,
		active:        make(map[int32]*processInfo),
		monitoredPIDs: make(map[int32]bool),
	}
	g.loadState()
	return g
}

func (g *Guardian) typeLimitsFor(name string) typeLimits {
	lower := strings.ToLower(name)
	for procType, cfg := range g.cfg.TypeConfigs {
		if strings.Contains(lower, procType) {
			return typeLimits{MaxMemoryMB: cfg.MaxMemoryMB, MaxConcurrent: cfg.MaxConcurrent, Priority: cfg.Priority}
		}
	}
	return typeLimits{MaxMemoryMB: g.cfg.MaxMemoryMB, MaxConcurrent: g.cfg.MaxConcurrent, Priority: 10}
}

func (g *Guardian) isCritical(name, cmdline string) bool {
	lowerName := strings.ToLower(name)
	if g.cfg.ProcessName != "" && strings.Contains(lowerName, strings.ToLower(g.cfg.ProcessName)) {
		return true
	}
	if g.cfg.CmdPattern != nil && g.cfg.CmdPattern.MatchString(cmdline) {
		return true
	}
	for procType := range g.cfg.TypeConfigs {
		if strings.Contains(lowerName, procType) {
			return true
		}
	}
	for _, critical := range g.cfg.CriticalNames {
		c := strings.ToLower(critical)
		if strings.Contains(lowerName, c) || strings.Contains(strings.ToLower(cmdline), c) {
			return true
		}
	}
	return false
}

// Start launches the monitor and queue-processor goroutines.
func (g *Guardian) Start() {
	g.stop = make(chan struct{})
	g.wg.Add(2)
	go g.monitorLoop()
	go g.queueProcessorLoop()
}

// Stop signals both goroutines to exit, waits for them, and flushes
// state to disk. Safe to call once after Start.
func (g *Guardian) Stop() {
	close(g.stop)
	g.wg.Wait()
	g.saveState()
}

func (g *Guardian) monitorLoop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.monitorTick()
		}
	}
}

func (g *Guardian) queueProcessorLoop() {
	defer g.wg.Done()
	interval := time.Duration(float64(g.cfg.CheckInterval) * 0.75)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.queueTick()
		}
	}
}

// monitorTick enumerates system processes in bounded batches,
// classifies critical ones, and admits or enqueues new arrivals
// (spec §4.13 Monitor).
func (g *Guardian) monitorTick() {
	procs, err := process.Processes()
	if err != nil {
		g.log.Warn("guardian: enumerate processes", zap.Error(err))
		return
	}

	const batchSize = 50
	for start := 0; start < len(procs); start += batchSize {
		end := start + batchSize
		if end > len(procs) {
			end = len(procs)
		}
		g.processBatch(procs[start:end])
	}
}

func (g *Guardian) processBatch(procs []*process.Process) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range procs {
		pid := p.Pid
		if _, tracked := g.active[pid]; tracked {
			continue
		}
		if g.inQueue(pid) {
			continue
		}

		name, err := p.Name()
		if err != nil {
			continue
		}
		cmdline, _ := p.Cmdline()
		if !g.isCritical(name, cmdline) {
			continue
		}

		memInfo, _ := p.MemoryInfo()
		var memMB float64
		if memInfo != nil {
			memMB = float64(memInfo.RSS) / (1024 * 1024)
		}
		createMS, _ := p.CreateTime()

		info := &processInfo{PID: pid, Name: name, Cmdline: cmdline, MemoryMB: memMB, CreateMS: createMS}
		g.monitoredPIDs[pid] = true

		limits := g.typeLimitsFor(name)
		totalMem := g.totalActiveMemoryLocked()
		if len(g.active) < g.cfg.MaxConcurrent && totalMem+memMB <= float64(g.cfg.MaxTotalMemoryMB) && g.countActiveTypeLocked(name) < limits.MaxConcurrent {
			info.StartTime = time.Now()
			g.active[pid] = info
			g.log.Info("guardian: admitted process", zap.Int32("pid", pid), zap.String("name", name))
			continue
		}

		if len(g.queue) >= g.cfg.MaxQueueSize {
			g.log.Warn("guardian: queue full, killing incoming process", zap.Int32("pid", pid), zap.String("name", name))
			g.killLocked(pid, "queue full")
			continue
		}
		g.queue = append(g.queue, info)
	}
}

func (g *Guardian) inQueue(pid int32) bool {
	for _, q := range g.queue {
		if q.PID == pid {
			return true
		}
	}
	return false
}

func (g *Guardian) totalActiveMemoryLocked() float64 {
	var total float64
	for _, info := range g.active {
		total += info.MemoryMB
	}
	return total
}

func (g *Guardian) countActiveTypeLocked(name string) int {
	lower := strings.ToLower(name)
	count := 0
	for _, info := range g.active {
		if strings.Contains(strings.ToLower(info.Name), lower) {
			count++
		}
	}
	return count
}

// queueTick samples active-process memory (cached most ticks),
// enforces per-type memory/timeout limits, applies the 85%/70%
// kill-lowest-priority watermark, and admits queued processes up to 5
// per tick (spec §4.13 Queue processor).
func (g *Guardian) queueTick() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.memCheckTick++
	sampleNow := g.memCheckTick%memorySampleEvery == 0

	var toKill []int32
	for pid, info := range g.active {
		proc, err := process.NewProcess(pid)
		if err != nil {
			toKill = append(toKill, -pid) // sentinel: already gone, just drop
			continue
		}
		if sampleNow {
			if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
				info.MemoryMB = float64(memInfo.RSS) / (1024 * 1024)
			}
		}

		limits := g.typeLimitsFor(info.Name)
		if int64(info.MemoryMB) > limits.MaxMemoryMB {
			toKill = append(toKill, pid)
			continue
		}
		if time.Since(info.StartTime) > g.cfg.Timeout {
			toKill = append(toKill, pid)
		}
	}
	for _, pid := range toKill {
		if pid < 0 {
			delete(g.active, -pid)
			continue
		}
		g.killLocked(pid, "memory or timeout limit exceeded")
	}

	totalMem := g.totalActiveMemoryLocked()
	highWatermark := float64(g.cfg.MaxTotalMemoryMB) * highWatermarkRatio
	lowWatermark := float64(g.cfg.MaxTotalMemoryMB) * lowWatermarkRatio
	if totalMem > highWatermark {
		g.log.Warn("guardian: high memory usage, killing lowest-priority processes", zap.Float64("total_mb", totalMem))
		ordered := g.activeByPriorityLocked()
		for _, info := range ordered {
			if totalMem <= lowWatermark {
				break
			}
			g.killLocked(info.PID, "killed low priority process to free memory")
			totalMem -= info.MemoryMB
		}
	}

	if g.cfg.KillDuplicates {
		g.dupCheckTick++
		if g.dupCheckTick%duplicateCheckEvery == 0 {
			for _, pid := range g.findDuplicatesLocked() {
				g.killLocked(pid, "duplicate process instance")
			}
		}
	}

	g.admitFromQueueLocked()
}

// findDuplicatesLocked groups active processes by command signature
// (the full Cmdline) and returns every instance but the oldest (by
// CreateMS) in each group with more than one member. Grounded on
// process_guardian.py's _find_duplicate_processes/kill_process, which
// groups by command line and keeps the earliest-created instance;
// unlike the source's cmdline[0]-only signature (which would treat any
// two invocations of the same binary as duplicates regardless of
// arguments), the full trimmed Cmdline is used so distinct invocations
// of the same program aren't wrongly killed.
func (g *Guardian) findDuplicatesLocked() []int32 {
	groups := make(map[string][]*processInfo)
	for _, info := range g.active {
		sig := strings.TrimSpace(info.Cmdline)
		if sig == "" {
			continue
		}
		groups[sig] = append(groups[sig], info)
	}

	var dups []int32
	for _, infos := range groups {
		if len(infos) < 2 {
			continue
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].CreateMS < infos[j].CreateMS })
		for _, info := range infos[1:] {
			dups = append(dups, info.PID)
		}
	}
	return dups
}

// activeByPriorityLocked sorts active processes by (priority asc,
// memory desc), the order in which they're killed under memory
// pressure.
func (g *Guardian) activeByPriorityLocked() []*processInfo {
	infos := make([]*processInfo, 0, len(g.active))
	for _, info := range g.active {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		li, lj := g.typeLimitsFor(infos[i].Name), g.typeLimitsFor(infos[j].Name)
		if li.Priority != lj.Priority {
			return li.Priority < lj.Priority
		}
		return infos[i].MemoryMB > infos[j].MemoryMB
	})
	return infos
}

func (g *Guardian) admitFromQueueLocked() {
	maxItems := g.cfg.MaxConcurrent - len(g.active)
	if maxItems > 5 {
		maxItems = 5
	}
	if maxItems <= 0 || len(g.queue) == 0 {
		return
	}

	sort.SliceStable(g.queue, func(i, j int) bool {
		return g.typeLimitsFor(g.queue[i].Name).Priority < g.typeLimitsFor(g.queue[j].Name).Priority
	})

	var retry []*processInfo
	admitted := 0
	totalMem := g.totalActiveMemoryLocked()

	for _, info := range g.queue {
		if admitted >= maxItems {
			retry = append(retry, info)
			continue
		}
		limits := g.typeLimitsFor(info.Name)
		availableMem := float64(g.cfg.MaxTotalMemoryMB) - totalMem
		if availableMem < float64(limits.MaxMemoryMB) {
			retry = append(retry, info)
			continue
		}
		if g.countActiveTypeLocked(info.Name) >= limits.MaxConcurrent {
			retry = append(retry, info)
			continue
		}

		info.StartTime = time.Now()
		g.active[info.PID] = info
		totalMem += info.MemoryMB
		admitted++
		g.log.Info("guardian: admitted queued process", zap.Int32("pid", info.PID), zap.String("name", info.Name))
	}
	g.queue = retry
}

// killLocked terminates pid with SIGTERM, waits terminateGrace for it
// to exit, then SIGKILLs survivors. Must be called with g.mu held.
func (g *Guardian) killLocked(pid int32, reason string) {
	delete(g.active, pid)
	for i, q := range g.queue {
		if q.PID == pid {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			break
		}
	}
	delete(g.monitoredPIDs, pid)

	proc, err := process.NewProcess(pid)
	if err != nil {
		return
	}
	g.log.Warn("guardian: killing process", zap.Int32("pid", pid), zap.String("reason", reason))
	if err := proc.Terminate(); err != nil {
		return
	}

	deadline := time.Now().Add(terminateGrace)
	for time.Now().Before(deadline) {
		running, err := proc.IsRunning()
		if err != nil || !running {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = proc.Kill()
}

// guardianState is the on-disk JSON state persisted under the user's
// home directory (spec §4.13).
type guardianState struct {
	PIDs      []int32 `json:"pids"`
	Timestamp string  `json:"timestamp"`
}

func (g *Guardian) saveState() {
	g.mu.Lock()
	pids := make([]int32, 0, len(g.monitoredPIDs))
	for pid := range g.monitoredPIDs {
		pids = append(pids, pid)
	}
	g.mu.Unlock()

	state := guardianState{PIDs: pids, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.Marshal(state)
	if err != nil {
		g.log.Warn("guardian: marshal state", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.cfg.StateFilePath), 0o755); err != nil {
		g.log.Warn("guardian: create state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(g.cfg.StateFilePath, data, 0o644); err != nil {
		g.log.Warn("guardian: write state", zap.Error(err))
	}
}

func (g *Guardian) loadState() {
	data, err := os.ReadFile(g.cfg.StateFilePath)
	if err != nil {
		return
	}
	var state guardianState
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}
	for _, pid := range state.PIDs {
		if proc, err := process.NewProcess(pid); err == nil {
			if running, _ := proc.IsRunning(); running {
				g.monitoredPIDs[pid] = true
			}
		}
	}
}

// ActiveCount reports the number of currently admitted processes.
func (g *Guardian) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// QueueLen reports the number of processes waiting for admission.
func (g *Guardian) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}
