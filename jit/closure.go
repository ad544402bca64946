package jit

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
)

// closureBackend lowers every tick step into a closure with resolved
// storage. Ticks are a loop over closures.
type closureBackend struct{}

func (closureBackend) Name() string {
	return DefaultBackend
}

type copyOp struct {
	dst, src *float32
}

type routeOp struct {
	src  event.Events
	dsts []event.Events
}

func (r routeOp) run() {
	for _, dst := range r.dsts {
		event.Copy(dst, r.src)
	}
}

// eventOp either routes an output or clears an input.
type eventOp struct {
	route routeOp
	clear event.Events
}

type closureProgram struct {
	steps []func()
}

func (p *closureProgram) Tick() {
	for _, step := range p.steps {
		step()
	}
}

// lowering resolves IR endpoints to storage.
type lowering struct {
	ir      *GraphIR
	layout  *Layout
	state   *State
	sources []int
	fanout  [][]int
}

// value returns storage connections read endpoint i from.
func (l *lowering) value(i int) *float32 {
	if p := l.state.Scalar(l.layout, i); p != nil {
		return p
	}
	return l.ir.Endpoints[i].Scalar
}

// events returns queue of endpoint i.
func (l *lowering) events(i int) event.Events {
	if b := l.state.Bus(l.layout, i); b != nil {
		return b
	}
	return l.ir.Endpoints[i].Events
}

func (l *lowering) route(i int) routeOp {
	r := routeOp{src: l.events(i)}
	for _, dst := range l.fanout[i] {
		r.dsts = append(r.dsts, l.events(dst))
	}
	return r
}

func (closureBackend) Compile(ir *GraphIR, layout *Layout, state *State) (Program, error) {
	l := lowering{
		ir:      ir,
		layout:  layout,
		state:   state,
		sources: ir.Sources(),
		fanout:  ir.Fanout(),
	}
	var p closureProgram

	var clears []event.Events
	for _, i := range ir.Outputs {
		if ir.Endpoints[i].Kind == graph.Event {
			clears = append(clears, l.events(i))
		}
	}
	var routes []routeOp
	for _, i := range ir.Inputs {
		if ir.Endpoints[i].Kind == graph.Event {
			routes = append(routes, l.route(i))
		}
	}
	if len(clears) > 0 || len(routes) > 0 {
		p.steps = append(p.steps, func() {
			for _, q := range clears {
				q.Clear()
			}
			for _, r := range routes {
				r.run()
				r.src.Clear()
			}
		})
	}

	for _, n := range ir.Order {
		p.steps = append(p.steps, l.node(&ir.Nodes[n]))
	}

	var outputs []copyOp
	for _, i := range ir.Outputs {
		if src := l.sources[i]; src != NoIndex {
			outputs = append(outputs, copyOp{dst: l.value(i), src: l.value(src)})
		}
	}
	if len(outputs) > 0 {
		p.steps = append(p.steps, func() {
			for _, c := range outputs {
				*c.dst = *c.src
			}
		})
	}
	return &p, nil
}

// node lowers processing of one node: read inputs, clear event outputs,
// process and publish outputs. Event outputs are routed and event inputs
// cleared in endpoint order.
func (l *lowering) node(n *NodeIR) func() {
	var (
		inputs, outputs []copyOp
		clearOut        []event.Events
		events          []eventOp
	)
	for _, i := range n.Endpoints {
		e := &l.ir.Endpoints[i]
		switch {
		case e.Kind.IsScalar() && e.Direction == graph.Input:
			if src := l.sources[i]; src != NoIndex {
				inputs = append(inputs, copyOp{dst: e.Scalar, src: l.value(src)})
			}
		case e.Kind.IsScalar():
			outputs = append(outputs, copyOp{dst: l.value(i), src: e.Scalar})
		case e.Direction == graph.Output:
			clearOut = append(clearOut, e.Events)
			events = append(events, eventOp{route: l.route(i)})
		default:
			events = append(events, eventOp{clear: e.Events})
		}
	}
	node := n.Node
	return func() {
		for _, c := range inputs {
			*c.dst = *c.src
		}
		for _, q := range clearOut {
			q.Clear()
		}
		node.Process()
		for _, c := range outputs {
			*c.dst = *c.src
		}
		for _, op := range events {
			if op.clear != nil {
				op.clear.Clear()
				continue
			}
			op.route.run()
		}
	}
}
