package netdiscovery

import (
	"context"
	"net"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/pkg/ndmodels"
)

// rangeIter pairs a range with its address iterator so queueState can carry
// per-range SNMP scoping (ports/domains/entity/walk) alongside the
// iteration cursor.
type rangeIter struct {
	r  ndmodels.Range
	it *AddressIterator
}

// queueState is the scheduler's per-job bookkeeping (the QueueState of the
// data model), owned and mutated solely by the supervisor loop.
type queueState struct {
	job        ndmodels.Job
	ranges     []rangeIter
	size       uint64
	done       uint64
	inQueue    int
	maxInQueue int
	started    bool
}

// nextAddress pops the next address off the job's current range,
// advancing past exhausted ranges as needed. ok is false once every range
// is exhausted.
func (q *queueState) nextAddress() (net.IP, ProbeParams, bool) {
	for len(q.ranges) > 0 {
		cur := q.ranges[0]
		ip, ok := cur.it.Current()
		if !ok {
			q.ranges = q.ranges[1:]
			continue
		}
		cur.it.Advance()
		params := ProbeParams{
			Ports:       cur.r.Ports,
			Domains:     cur.r.Domains,
			Entity:      cur.r.Entity,
			Walk:        cur.r.Walk,
			Credentials: q.job.Credentials,
			Timeout:     q.job.Timeout,
		}
		return ip, params, true
	}
	return nil, ProbeParams{}, false
}

// fuser is the subset of *Fusion the scheduler depends on, broken out so
// tests can substitute a fake instead of wiring real probes.
type fuser interface {
	Probe(ctx context.Context, ip net.IP, params ProbeParams) (ndmodels.DeviceResult, bool)
}

// Scheduler is the bounded worker-pool supervisor (C6): it sizes ranges in
// parallel, computes the run's deadline, then dispatches per-address probe
// work fairly across jobs while enforcing per-job concurrency caps and the
// global deadline/abort.
type Scheduler struct {
	fusion           fuser
	reporter         *Reporter
	logger           *zap.Logger
	abort            *AbortFlag
	targetExpiration time.Duration
	metrics          *Metrics
	now              func() time.Time
}

// NewScheduler creates a Scheduler. targetExpiration is the per-address
// deadline budget (floored at 60s by ComputeDeadline). metrics may be nil,
// in which case the scheduler runs without instrumentation.
func NewScheduler(fusion fuser, reporter *Reporter, logger *zap.Logger, abort *AbortFlag, targetExpiration time.Duration, metrics *Metrics) *Scheduler {
	return &Scheduler{
		fusion:           fusion,
		reporter:         reporter,
		logger:           logger,
		abort:            abort,
		targetExpiration: targetExpiration,
		metrics:          metrics,
		now:              time.Now,
	}
}

// WithClock overrides the scheduler's time source and returns s for
// chaining. Tests substitute a testutil.Clock here to exercise deadline
// crossing deterministically instead of racing a real wall-clock timeout.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

type sizedRange struct {
	pid  uint32
	r    ndmodels.Range
	it   *AddressIterator
	size uint64
}

type workResult struct {
	pid    uint32
	record ndmodels.DeviceResult
	ok     bool
}

// Run drives jobs to completion or abort. It returns once every job has
// either completed normally (two ENDs) or, on abort, emitted its EXIT.
func (s *Scheduler) Run(ctx context.Context, jobs []ndmodels.Job) {
	if len(jobs) == 0 {
		return
	}

	// Phase A: size every range in parallel.
	totalRanges := 0
	for _, job := range jobs {
		totalRanges += len(job.ValidRanges())
	}
	sizedCh := make(chan sizedRange, totalRanges)
	sizers := newWorkerPool(64)
	for _, job := range jobs {
		for _, r := range job.ValidRanges() {
			pid, r := job.PID, r
			sizers.Go(func() {
				it := NewAddressIterator(r)
				sizedCh <- sizedRange{pid: pid, r: r, it: it, size: it.Size()}
			})
		}
	}
	go func() {
		sizers.Wait()
		close(sizedCh)
	}()

	perJobRanges := map[uint32][]rangeIter{}
	perJobSize := map[uint32]uint64{}
	for sr := range sizedCh {
		if sr.size == 0 {
			s.logger.Warn("netdiscovery: range skipped (empty or invalid block)", zap.Uint32("pid", sr.pid))
			continue
		}
		perJobRanges[sr.pid] = append(perJobRanges[sr.pid], rangeIter{r: sr.r, it: sr.it})
		perJobSize[sr.pid] += sr.size
	}

	states := map[uint32]*queueState{}
	var order []uint32
	var jobSizeTimeoutSum time.Duration
	var totalAddresses uint64

	for _, job := range jobs {
		size := perJobSize[job.PID]
		if size == 0 {
			// Zero-size short-circuit: the lifecycle protocol's
			// "final message twice" policy applies even here.
			s.reporter.SendStart(ctx, job.PID)
			s.reporter.SendNBIP(ctx, job.PID, 0)
			s.reporter.SendEnd(ctx, job.PID)
			s.reporter.SendEnd(ctx, job.PID)
			if s.metrics != nil {
				s.metrics.JobStarted()
				s.metrics.JobCompleted()
			}
			continue
		}
		states[job.PID] = &queueState{
			job:        job,
			ranges:     perJobRanges[job.PID],
			size:       size,
			maxInQueue: int(job.MaxThreads),
		}
		order = append(order, job.PID)
		jobSizeTimeoutSum += time.Duration(size) * job.Timeout
		totalAddresses += size
	}
	if len(order) == 0 {
		return
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	// Phase B: deadline.
	now := s.now()
	deadline, _ := ComputeDeadline(now, totalAddresses, jobSizeTimeoutSum, s.targetExpiration)

	var maxThreads uint32
	for _, pid := range order {
		if states[pid].job.MaxThreads > maxThreads {
			maxThreads = states[pid].job.MaxThreads
		}
	}
	workerCount := int(maxThreads)
	if totalAddresses < uint64(workerCount) {
		workerCount = int(totalAddresses)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	// Phase C: bounded worker pool.
	pool := newWorkerPool(workerCount)
	results := make(chan workResult, workerCount*2)
	lastLog := now

	for {
		if s.abort.IsSet() {
			s.logger.Info("netdiscovery: run aborted", zap.Error(ErrAborted))
			break
		}
		if s.now().After(deadline) {
			s.abort.Set()
			s.logger.Info("netdiscovery: run deadline exceeded", zap.Error(ErrDeadlineExceeded))
			break
		}

		progressed := false
		for _, pid := range order {
			st := states[pid]
			if st == nil || st.inQueue >= st.maxInQueue {
				continue
			}
			ip, params, ok := st.nextAddress()
			if !ok {
				continue
			}
			if !st.started {
				s.reporter.SendStart(ctx, pid)
				s.reporter.SendNBIP(ctx, pid, int(st.size))
				st.started = true
				if s.metrics != nil {
					s.metrics.JobStarted()
				}
			}
			st.inQueue++
			progressed = true
			if s.metrics != nil {
				s.metrics.SetInFlight(strconv.FormatUint(uint64(pid), 10), st.inQueue)
			}

			pid, ip, params := pid, ip, params
			pool.Go(func() {
				record, hit := s.fusion.Probe(ctx, ip, params)
				results <- workResult{pid: pid, record: record, ok: hit}
			})
		}

		s.reap(ctx, states, results)

		if len(states) == 0 {
			break
		}
		if !progressed {
			time.Sleep(50 * time.Millisecond)
		}
		if s.now().Sub(lastLog) >= expirationLogInterval {
			s.logger.Info("netdiscovery: time remaining", zap.String("remaining", FormatRemaining(deadline.Sub(s.now()))))
			lastLog = s.now()
		}
	}

	pool.Wait()
	close(results)
	for res := range results {
		s.applyResult(ctx, states, res)
	}

	missed := 0
	for _, pid := range order {
		st, ok := states[pid]
		if !ok {
			continue
		}
		missed += int(st.size - st.done)
		s.reporter.SendExit(ctx, pid)
		if s.metrics != nil {
			s.metrics.JobAborted()
		}
	}
	if missed > 0 {
		s.logger.Info("netdiscovery: devices scan result missed", zap.Int("count", missed))
	}
}

// reap drains every completion currently buffered in results without
// blocking, applying each to its owning job's queueState.
func (s *Scheduler) reap(ctx context.Context, states map[uint32]*queueState, results chan workResult) {
	for {
		select {
		case res := <-results:
			s.applyResult(ctx, states, res)
		default:
			return
		}
	}
}

// applyResult folds one worker completion into its job's queueState,
// emitting DEVICE on a hit and the double-END on job completion.
func (s *Scheduler) applyResult(ctx context.Context, states map[uint32]*queueState, res workResult) {
	st, ok := states[res.pid]
	if !ok {
		return
	}
	st.inQueue--
	st.done++
	jobLabel := strconv.FormatUint(uint64(res.pid), 10)
	if s.metrics != nil {
		s.metrics.SetInFlight(jobLabel, st.inQueue)
	}
	if res.ok {
		s.reporter.SendDevice(ctx, res.pid, res.record)
		if s.metrics != nil {
			s.metrics.DeviceReported(jobLabel)
		}
	}
	if st.done == st.size {
		s.reporter.SendEnd(ctx, res.pid)
		delete(states, res.pid)
		s.reporter.SendEnd(ctx, res.pid)
		if s.metrics != nil {
			s.metrics.JobCompleted()
		}
	}
}
