package netdiscovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// RawRange is one RANGEIP entry as received from the task framework, before
// the address-iterator-level Range validation in pkg/ndmodels runs.
type RawRange struct {
	IPStart string
	IPEnd   string
	Ports   []uint16
	Domains []string
	Entity  string
	File    string
}

// RawParam is one PARAM entry; only the first element of a PARAM slice is
// ever consulted (per the external interface contract).
type RawParam struct {
	PID              uint32
	ThreadsDiscovery uint32
	Timeout          uint32 // seconds; 0 means unset
}

// Option mirrors one entry of getOptionsInfoByName("NETDISCOVERY"): the
// inbound shape the outer task framework hands to isEnabled.
type Option struct {
	RangeIP        []RawRange
	Param          []RawParam
	Authentication []ndmodels.Credential
}

const (
	defaultMaxThreads = 1
	defaultTimeout    = time.Second
)

// ParseJobs validates a batch of Options into Jobs (C5). It returns the
// surviving jobs and whether the task should remain enabled (false iff no
// job survives, per the isEnabled contract).
//
// An Option is dropped (config-invalid, logged at debug) if it has no PARAM
// entry or the first PARAM entry has a zero PID. Within a surviving
// Option, each RawRange is converted to an ndmodels.Range and validated;
// invalid ranges are dropped (range-invalid, logged at warn). An Option
// with no valid range afterward is dropped entirely.
func ParseJobs(logger *zap.Logger, options []Option) ([]ndmodels.Job, bool) {
	jobs := make([]ndmodels.Job, 0, len(options))

	for _, opt := range options {
		if len(opt.Param) == 0 {
			logger.Debug("netdiscovery option dropped", zap.Error(fmt.Errorf("no PARAM entry: %w", ErrConfigInvalid)))
			continue
		}
		param := opt.Param[0]
		if param.PID == 0 {
			logger.Debug("netdiscovery option dropped", zap.Error(fmt.Errorf("PARAM has no PID: %w", ErrConfigInvalid)))
			continue
		}

		ranges := make([]ndmodels.Range, 0, len(opt.RangeIP))
		for _, rr := range opt.RangeIP {
			r := ndmodels.Range{
				Start:   net.ParseIP(rr.IPStart),
				End:     net.ParseIP(rr.IPEnd),
				Ports:   rr.Ports,
				Domains: rr.Domains,
				Entity:  rr.Entity,
				Walk:    rr.File,
			}
			if !r.Valid() {
				logger.Warn("netdiscovery range dropped",
					zap.Uint32("pid", param.PID),
					zap.String("start", rr.IPStart),
					zap.String("end", rr.IPEnd),
					zap.Error(fmt.Errorf("invalid start/end: %w", ErrRangeInvalid)))
				continue
			}
			ranges = append(ranges, r)
		}
		if len(ranges) == 0 {
			logger.Warn("netdiscovery option dropped",
				zap.Uint32("pid", param.PID),
				zap.Error(fmt.Errorf("no valid range: %w", ErrRangeInvalid)))
			continue
		}

		maxThreads := param.ThreadsDiscovery
		if maxThreads == 0 {
			maxThreads = defaultMaxThreads
		}
		timeout := defaultTimeout
		if param.Timeout > 0 {
			timeout = time.Duration(param.Timeout) * time.Second
		}

		job := ndmodels.Job{
			PID:         param.PID,
			MaxThreads:  maxThreads,
			Timeout:     timeout,
			Credentials: opt.Authentication,
			Ranges:      ranges,
		}
		if err := job.Validate(); err != nil {
			logger.Warn("netdiscovery job dropped", zap.Uint32("pid", param.PID), zap.Error(fmt.Errorf("%w: %v", ErrConfigInvalid, err)))
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, len(jobs) > 0
}

// Task is the binding an outer task framework drives: IsEnabled validates a
// batch of Options into runnable jobs (§6), and Run hands those jobs to the
// scheduler. Task owns no state of its own beyond the pieces it wires
// together, so the outer framework is free to keep a single Task alive
// across many isEnabled/run cycles.
type Task struct {
	logger    *zap.Logger
	scheduler *Scheduler
}

// NewTask creates a Task bound to scheduler for job execution and logger
// for option/range validation diagnostics.
func NewTask(logger *zap.Logger, scheduler *Scheduler) *Task {
	return &Task{logger: logger, scheduler: scheduler}
}

// IsEnabled validates opts into jobs, returning the survivors and whether
// the task should run at all (false iff every Option was dropped).
func (t *Task) IsEnabled(opts []Option) ([]ndmodels.Job, bool) {
	return ParseJobs(t.logger, opts)
}

// Run drives jobs to completion or abort via the bound scheduler.
func (t *Task) Run(ctx context.Context, jobs []ndmodels.Job) {
	t.scheduler.Run(ctx, jobs)
}
