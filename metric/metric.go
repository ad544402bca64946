// Package metric exposes processing counters of rendered graphs with expvar.
// Counters are grouped by graph kind, e.g. graph.Graph or jit.CompiledGraph,
// so modes rendering the same description can be compared.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const prefix = "graph.kinds"

// Counter names.
const (
	// GraphCounter is the number of metered graphs.
	GraphCounter = "Graphs"
	// BlockCounter is the number of processed blocks.
	BlockCounter = "Blocks"
	// TickCounter is the number of processed ticks.
	TickCounter = "Ticks"
	// ProcessTimeCounter is the time spent processing blocks.
	ProcessTimeCounter = "ProcessTime"
	// SignalTimeCounter is the duration of produced signal.
	SignalTimeCounter = "SignalTime"
	// MaxBlockTimeCounter is the processing time of the slowest block.
	MaxBlockTimeCounter = "MaxBlockTime"
	// OverrunCounter is the number of blocks processed slower than they
	// play back.
	OverrunCounter = "Overruns"
	// DroppedCounter is the number of events rejected by full queues.
	DroppedCounter = "DroppedEvents"
	// LoadCounter is the ratio of processing time to signal time.
	LoadCounter = "Load"
)

var (
	registry = kinds{m: make(map[string]*kind)}

	counters = []string{
		GraphCounter,
		BlockCounter,
		TickCounter,
		ProcessTimeCounter,
		SignalTimeCounter,
		MaxBlockTimeCounter,
		OverrunCounter,
		DroppedCounter,
		LoadCounter,
	}
)

// Dropper is implemented by graphs that count rejected events.
type Dropper interface {
	Dropped() uint64
}

// Meter measures blocks of one graph. Meters of the same graph kind share
// counters. A meter is used by one goroutine.
type Meter struct {
	kind       *kind
	sampleRate float32
	dropper    Dropper
	dropped    uint64
	started    time.Time
}

// New registers graph and returns its meter. If graph implements Dropper,
// rejected events are counted too.
func New(graph interface{}, sampleRate float32) *Meter {
	m := Meter{
		kind:       registry.get(kindOf(graph)),
		sampleRate: sampleRate,
	}
	if d, ok := graph.(Dropper); ok {
		m.dropper = d
		m.dropped = d.Dropped()
	}
	m.kind.graphs.Add(1)
	return &m
}

// Begin marks the start of a block.
func (m *Meter) Begin() {
	m.started = time.Now()
}

// End captures the block of ticks processed since Begin.
func (m *Meter) End(ticks int) {
	elapsed := time.Since(m.started)
	signal := DurationOf(m.sampleRate, ticks)
	k := m.kind
	k.blocks.Add(1)
	k.ticks.Add(int64(ticks))
	k.processTime.add(elapsed)
	k.signalTime.add(signal)
	k.maxBlockTime.max(elapsed)
	if elapsed > signal {
		k.overruns.Add(1)
	}
	if m.dropper != nil {
		if d := m.dropper.Dropped(); d > m.dropped {
			k.dropped.Add(int64(d - m.dropped))
			m.dropped = d
		}
	}
}

// DurationOf returns time duration of n ticks at sample rate.
func DurationOf(sampleRate float32, n int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}

// Get returns counter values of provided graph kind.
func Get(graph interface{}) map[string]string {
	return values(kindOf(graph))
}

// GetAll returns counters of all metered graph kinds.
func GetAll() map[string]map[string]string {
	registry.Lock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	registry.Unlock()

	m := make(map[string]map[string]string, len(names))
	for _, name := range names {
		m[name] = values(name)
	}
	return m
}

func values(name string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		if v := expvar.Get(key(name, counter)); v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

type kinds struct {
	sync.Mutex
	m map[string]*kind
}

func (ks *kinds) get(name string) *kind {
	ks.Lock()
	defer ks.Unlock()
	if k, ok := ks.m[name]; ok {
		return k
	}
	k := newKind(name)
	ks.m[name] = k
	return k
}

// kind holds counters of one graph kind.
type kind struct {
	graphs       *expvar.Int
	blocks       *expvar.Int
	ticks        *expvar.Int
	overruns     *expvar.Int
	dropped      *expvar.Int
	processTime  duration
	signalTime   duration
	maxBlockTime duration
}

func newKind(name string) *kind {
	k := kind{
		graphs:   expvar.NewInt(key(name, GraphCounter)),
		blocks:   expvar.NewInt(key(name, BlockCounter)),
		ticks:    expvar.NewInt(key(name, TickCounter)),
		overruns: expvar.NewInt(key(name, OverrunCounter)),
		dropped:  expvar.NewInt(key(name, DroppedCounter)),
	}
	expvar.Publish(key(name, ProcessTimeCounter), &k.processTime)
	expvar.Publish(key(name, SignalTimeCounter), &k.signalTime)
	expvar.Publish(key(name, MaxBlockTimeCounter), &k.maxBlockTime)
	expvar.Publish(key(name, LoadCounter), expvar.Func(k.load))
	return &k
}

// load is zero until a signal is produced.
func (k *kind) load() interface{} {
	signal := k.signalTime.d.Load()
	if signal == 0 {
		return 0.0
	}
	return float64(k.processTime.d.Load()) / float64(signal)
}

func key(name, counter string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, name, counter)
}

func kindOf(graph interface{}) string {
	t := reflect.TypeOf(graph)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// duration is an expvar.Var of time.Duration.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) max(value time.Duration) {
	for {
		old := v.d.Load()
		if int64(value) <= old || v.d.CompareAndSwap(old, int64(value)) {
			return
		}
	}
}
