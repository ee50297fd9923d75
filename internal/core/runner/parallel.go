package runner

import (
	"reflect"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

type actionJob struct {
	action  func()
	barrier *Barrier
}

func (j *actionJob) joined() *Barrier { return j.barrier }

func (j *actionJob) invoke() {
	j.action()
	b := j.barrier
	*j = actionJob{}
	actionJobPool.Put(j)
	if b != nil {
		b.Signal()
	}
}

type dataJob[T any] struct {
	action  func(data *T)
	data    T
	barrier *Barrier
	pool    *sync.Pool
}

func (j *dataJob[T]) joined() *Barrier { return j.barrier }

func (j *dataJob[T]) invoke() {
	j.action(&j.data)
	b, pool := j.barrier, j.pool
	*j = dataJob[T]{}
	pool.Put(j)
	if b != nil {
		b.Signal()
	}
}

type groupJob struct {
	action  GroupAction
	rng     Range
	barrier *Barrier
}

func (j *groupJob) joined() *Barrier { return j.barrier }

func (j *groupJob) invoke() {
	j.action(j.rng)
	if j.barrier != nil {
		j.barrier.Signal()
	}
}

type groupDataJob[T any] struct {
	action  func(data *T, r Range)
	data    T
	rng     Range
	barrier *Barrier
}

func (j *groupDataJob[T]) joined() *Barrier { return j.barrier }

func (j *groupDataJob[T]) invoke() {
	j.action(&j.data, j.rng)
	if j.barrier != nil {
		j.barrier.Signal()
	}
}

var (
	actionJobPool = sync.Pool{New: func() any { return new(actionJob) }}
	dataJobPools  sync.Map // reflect.Type -> *sync.Pool of *dataJob[T]
)

func typedPool[T any](pools *sync.Map, create func() any) *sync.Pool {
	key := reflect.TypeFor[T]()
	if p, ok := pools.Load(key); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(key, &sync.Pool{New: create})
	return p.(*sync.Pool)
}

// ParallelRunner owns a fixed set of worker goroutines draining one shared
// unbounded job queue. Submissions never block the producer; bounding
// outstanding work is up to the caller.
type ParallelRunner struct {
	degree int
	queue  *jobQueue
	log    *zap.Logger
	wg     sync.WaitGroup

	groupArrays     sync.Pool // *[]groupJob, len == degree
	groupDataArrays sync.Map  // reflect.Type -> *sync.Pool of *[]groupDataJob[T]

	closeOnce sync.Once
}

type Option func(*ParallelRunner)

// WithLogger sets the logger used to report panics of fire-and-forget jobs.
func WithLogger(log *zap.Logger) Option {
	return func(r *ParallelRunner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewParallelRunner starts degree workers. A degree below one uses
// runtime.NumCPU().
func NewParallelRunner(degree int, opts ...Option) *ParallelRunner {
	if degree < 1 {
		degree = runtime.NumCPU()
	}
	r := &ParallelRunner{
		degree: degree,
		queue:  newJobQueue(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.groupArrays.New = func() any {
		arr := make([]groupJob, r.degree)
		return &arr
	}

	r.wg.Add(degree)
	for i := 0; i != degree; i++ {
		go r.worker(i)
	}
	r.log.Debug("parallel runner started", zap.Int("workers", degree))
	return r
}

func (r *ParallelRunner) DegreeOfParallelism() int { return r.degree }

// Pending returns the number of queued jobs not yet taken by a worker.
func (r *ParallelRunner) Pending() int { return r.queue.len() }

func (r *ParallelRunner) worker(id int) {
	defer r.wg.Done()
	for {
		j, ok := r.queue.pop()
		if !ok {
			return
		}
		r.execute(id, j)
	}
}

func (r *ParallelRunner) execute(id int, j job) {
	b := j.joined()
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		err := newPanicError(v)
		if b != nil {
			b.Throw(err)
			return
		}
		r.log.Error("uncaught job panic",
			zap.Int("worker", id),
			zap.Error(err),
			zap.ByteString("stack", err.Stack))
	}()
	j.invoke()
}

// submit enqueues jobs, registering them with barrier first. release, if
// set, is called with payload once barrier completes.
func (r *ParallelRunner) submit(barrier *Barrier, release func(any), payload any, jobs ...job) error {
	var before func()
	if barrier != nil {
		before = func() {
			barrier.AddParticipants(len(jobs))
			if release != nil {
				barrier.AddCallback(release, payload)
			}
		}
	}
	if !r.queue.push(before, jobs...) {
		return ErrClosed
	}
	return nil
}

// Run submits a single action.
func (r *ParallelRunner) Run(action func(), barrier *Barrier) error {
	j := actionJobPool.Get().(*actionJob)
	j.action = action
	j.barrier = barrier
	if err := r.submit(barrier, nil, nil, j); err != nil {
		*j = actionJob{}
		actionJobPool.Put(j)
		return err
	}
	return nil
}

// RunGroup splits [0, taskCount) across at most DegreeOfParallelism jobs.
// With a barrier, the job array is pooled and recycled as a whole once the
// barrier completes.
func (r *ParallelRunner) RunGroup(taskCount int, action GroupAction, barrier *Barrier) error {
	slices := sliceCount(taskCount, r.degree)
	if slices == 0 {
		return nil
	}

	var (
		arr     []groupJob
		pooled  *[]groupJob
		release func(any)
	)
	if barrier != nil {
		pooled = r.groupArrays.Get().(*[]groupJob)
		arr = *pooled
		release = r.releaseGroupArray
	} else {
		arr = make([]groupJob, slices)
	}

	batch := make([]job, slices)
	eachSlice(taskCount, slices, func(i int, rng Range) {
		j := &arr[i]
		j.action = action
		j.rng = rng
		j.barrier = barrier
		batch[i] = j
	})

	if err := r.submit(barrier, release, pooled, batch...); err != nil {
		if pooled != nil {
			r.releaseGroupArray(pooled)
		}
		return err
	}
	return nil
}

func (r *ParallelRunner) releaseGroupArray(payload any) {
	pooled := payload.(*[]groupJob)
	clear(*pooled)
	r.groupArrays.Put(pooled)
}

// RunWith submits action with its own copy of data. Jobs are pooled per
// payload type.
func RunWith[T any](r Runner, data T, action func(data *T), barrier *Barrier) error {
	pr, ok := r.(*ParallelRunner)
	if !ok {
		return r.Run(func() { action(&data) }, barrier)
	}

	pool := typedPool[T](&dataJobPools, func() any { return new(dataJob[T]) })
	j := pool.Get().(*dataJob[T])
	j.action = action
	j.data = data
	j.barrier = barrier
	j.pool = pool
	if err := pr.submit(barrier, nil, nil, j); err != nil {
		*j = dataJob[T]{}
		pool.Put(j)
		return err
	}
	return nil
}

// RunGroupWith is RunGroup with a payload copied into every slice job. With a
// barrier, job arrays are pooled per payload type.
func RunGroupWith[T any](r Runner, taskCount int, data T, action func(data *T, rng Range), barrier *Barrier) error {
	pr, ok := r.(*ParallelRunner)
	if !ok {
		return r.RunGroup(taskCount, func(rng Range) { action(&data, rng) }, barrier)
	}

	slices := sliceCount(taskCount, pr.degree)
	if slices == 0 {
		return nil
	}

	var (
		arr     []groupDataJob[T]
		pooled  *[]groupDataJob[T]
		pool    *sync.Pool
		release func(any)
	)
	if barrier != nil {
		pool = typedPool[T](&pr.groupDataArrays, func() any {
			arr := make([]groupDataJob[T], pr.degree)
			return &arr
		})
		pooled = pool.Get().(*[]groupDataJob[T])
		arr = *pooled
		release = func(payload any) {
			p := payload.(*[]groupDataJob[T])
			clear(*p)
			pool.Put(p)
		}
	} else {
		arr = make([]groupDataJob[T], slices)
	}

	batch := make([]job, slices)
	eachSlice(taskCount, slices, func(i int, rng Range) {
		j := &arr[i]
		j.action = action
		j.data = data
		j.rng = rng
		j.barrier = barrier
		batch[i] = j
	})

	if err := pr.submit(barrier, release, pooled, batch...); err != nil {
		if release != nil {
			release(pooled)
		}
		return err
	}
	return nil
}

// Close stops accepting submissions. Jobs already queued are still drained by
// the workers; Close does not wait for them.
func (r *ParallelRunner) Close() {
	r.closeOnce.Do(func() {
		r.queue.close()
		r.log.Debug("parallel runner closed", zap.Int("pending", r.queue.len()))
	})
}

// Wait blocks until every worker has exited. Only meaningful after Close.
func (r *ParallelRunner) Wait() {
	r.wg.Wait()
}
