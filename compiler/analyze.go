package compiler

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"pipelined.dev/graph"
	"pipelined.dev/graph/description"
	"pipelined.dev/graph/param"
)

// Boundary is a resolved graph input or output.
type Boundary struct {
	Name    string
	Kind    graph.Kind
	Default float32
	Spec    param.Spec
}

// Instance is a resolved node instantiation. Arrays are expanded into one
// instance per element.
type Instance struct {
	// Name is the node name in the graph, e.g. "osc" or "voices[2]".
	Name string
	// Decl is the declared name, Index is the element index or -1.
	Decl  string
	Index int
	// Count is the array size, zero for single nodes.
	Count     int
	Type      NodeType
	Args      []float32
	Endpoints []graph.EndpointDescriptor
}

// Endpoint is a resolved endpoint reference.
type Endpoint struct {
	// Instance is index in Plan.Instances, or -1 for graph boundary.
	Instance int
	// Name of the boundary or node endpoint.
	Name string
	Kind graph.Kind
}

// Term is a product of a coefficient and endpoint values.
type Term struct {
	Coefficient float32
	Factors     []Endpoint
}

// Wire feeds a destination with a sum of terms.
type Wire struct {
	// Connection is index of the originating connection in description.
	Connection int
	To         Endpoint
	Terms      []Term
}

// Direct returns true if wire is a plain connection of one endpoint.
func (w Wire) Direct() bool {
	return len(w.Terms) == 1 && len(w.Terms[0].Factors) == 1 && w.Terms[0].Coefficient == 1
}

// Plan is a resolved description, ready to be built.
type Plan struct {
	Name       string
	Package    string
	Mode       description.Mode
	SampleRate float32
	Inputs     []Boundary
	Outputs    []Boundary
	Instances  []Instance
	Wires      []Wire
}

// Path returns graph path of endpoint.
func (p *Plan) Path(e Endpoint) string {
	if e.Instance < 0 {
		return e.Name
	}
	return p.Instances[e.Instance].Name + "." + e.Name
}

// Diagnostic is a problem found in a description.
type Diagnostic struct {
	// Where names the offending part of description.
	Where string
	Err   error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %v", d.Where, d.Err)
}

// Unwrap returns the underlying error.
func (d *Diagnostic) Unwrap() error {
	return d.Err
}

type analyzer struct {
	d        *description.Description
	registry *Registry
	plan     *Plan
	errs     error
	inputs   map[string]int
	outputs  map[string]int
	decls    map[string][]int
}

func (a *analyzer) report(where string, err error) {
	a.errs = multierr.Append(a.errs, &Diagnostic{Where: where, Err: err})
}

// Analyze validates description and resolves it against registry. All
// diagnostics are returned combined; use multierr.Errors to split them.
func Analyze(d *description.Description, registry *Registry) (*Plan, error) {
	if err := description.Validate(d); err != nil {
		return nil, err
	}
	a := analyzer{
		d:        d,
		registry: registry,
		plan: &Plan{
			Name:       d.Name,
			Package:    d.Package,
			Mode:       d.CompileMode(),
			SampleRate: d.SampleRate,
		},
		inputs:  make(map[string]int),
		outputs: make(map[string]int),
		decls:   make(map[string][]int),
	}
	a.boundaries()
	a.instances()
	if a.errs != nil {
		return nil, a.errs
	}
	a.wires()
	if a.errs != nil {
		return nil, a.errs
	}
	return a.plan, nil
}

func (a *analyzer) boundaries() {
	for _, in := range a.d.Inputs {
		kind, err := graph.ParseKind(in.Kind)
		if err != nil {
			a.report(fmt.Sprintf("input %q", in.Name), err)
			continue
		}
		spec, err := in.Spec()
		if err != nil {
			a.report(fmt.Sprintf("input %q", in.Name), err)
			continue
		}
		b := Boundary{Name: in.Name, Kind: kind, Spec: spec}
		if in.Default != nil {
			b.Default = spec.Clamp(*in.Default)
		} else {
			b.Default = spec.Clamp(0)
		}
		a.inputs[in.Name] = len(a.plan.Inputs)
		a.plan.Inputs = append(a.plan.Inputs, b)
	}
	for _, out := range a.d.Outputs {
		kind, err := graph.ParseKind(out.Kind)
		if err != nil {
			a.report(fmt.Sprintf("output %q", out.Name), err)
			continue
		}
		a.outputs[out.Name] = len(a.plan.Outputs)
		a.plan.Outputs = append(a.plan.Outputs, Boundary{Name: out.Name, Kind: kind})
	}
}

func (a *analyzer) instances() {
	for _, n := range a.d.Nodes {
		where := fmt.Sprintf("node %q", n.Name)
		t, ok := a.registry.Lookup(n.Type)
		if !ok {
			a.report(where, fmt.Errorf("%w: %q", ErrUnknownType, n.Type))
			continue
		}
		args, err := t.Args(n.Args)
		if err != nil {
			a.report(where, err)
			continue
		}
		endpoints := t.New(args).Endpoints()
		if n.Count == 0 {
			a.add(Instance{Name: n.Name, Decl: n.Name, Index: description.NoIndex, Type: t, Args: args, Endpoints: endpoints})
			continue
		}
		for i := 0; i < n.Count; i++ {
			a.add(Instance{
				Name:      graph.ElementName(n.Name, i),
				Decl:      n.Name,
				Index:     i,
				Count:     n.Count,
				Type:      t,
				Args:      args,
				Endpoints: endpoints,
			})
		}
	}
}

func (a *analyzer) add(inst Instance) {
	a.decls[inst.Decl] = append(a.decls[inst.Decl], len(a.plan.Instances))
	a.plan.Instances = append(a.plan.Instances, inst)
}

func (a *analyzer) wires() {
	connected := make(map[string]string)
	for ci, c := range a.d.Connections {
		where := fmt.Sprintf("connection %d (%s)", ci, c)
		dstRef, err := description.ParseRef(c.To)
		if err != nil {
			a.report(where, err)
			continue
		}
		expr, err := description.ParseExpr(c.From)
		if err != nil {
			a.report(where, err)
			continue
		}
		dsts, err := a.resolve(dstRef, false)
		if err != nil {
			a.report(where, err)
			continue
		}
		terms, err := a.terms(expr)
		if err != nil {
			a.report(where, err)
			continue
		}
		for _, dst := range dsts {
			w := Wire{Connection: ci, To: dst, Terms: terms}
			if err := a.check(w); err != nil {
				a.report(where, err)
				continue
			}
			path := a.plan.Path(dst)
			if dst.Kind.IsScalar() {
				if other, ok := connected[path]; ok {
					a.report(where, fmt.Errorf("%w: %s is fed by %s", graph.ErrInputConnected, path, other))
					continue
				}
				connected[path] = c.From
			}
			a.plan.Wires = append(a.plan.Wires, w)
		}
	}
}

var errLiteral = errors.New("literal in event connection")

// check verifies directions and kinds of a wire.
func (a *analyzer) check(w Wire) error {
	if w.To.Kind == graph.Event {
		if !w.Direct() {
			if len(w.Terms) == 1 && len(w.Terms[0].Factors) == 0 {
				return fmt.Errorf("%w: %w", graph.ErrKindMismatch, errLiteral)
			}
			return fmt.Errorf("%w: events cannot be combined", graph.ErrKindMismatch)
		}
	}
	for _, t := range w.Terms {
		for _, f := range t.Factors {
			if !f.Kind.Compatible(w.To.Kind) {
				return fmt.Errorf("%w: %s %v to %s %v", graph.ErrKindMismatch, a.plan.Path(f), f.Kind, a.plan.Path(w.To), w.To.Kind)
			}
		}
	}
	return nil
}

// terms resolves expression. Array sources without index expand into one
// term per element.
func (a *analyzer) terms(e description.Expr) ([]Term, error) {
	var terms []Term
	for _, operands := range e.Terms {
		expanded := []Term{{Coefficient: 1}}
		for _, o := range operands {
			if o.Ref == nil {
				for i := range expanded {
					expanded[i].Coefficient *= o.Literal
				}
				continue
			}
			srcs, err := a.resolve(*o.Ref, true)
			if err != nil {
				return nil, err
			}
			next := make([]Term, 0, len(expanded)*len(srcs))
			for _, t := range expanded {
				for _, src := range srcs {
					factors := append(append([]Endpoint(nil), t.Factors...), src)
					next = append(next, Term{Coefficient: t.Coefficient, Factors: factors})
				}
			}
			expanded = next
		}
		terms = append(terms, expanded...)
	}
	return terms, nil
}

// resolve returns endpoints referenced by r. Array references without index
// resolve to every element.
func (a *analyzer) resolve(r description.Ref, source bool) ([]Endpoint, error) {
	if r.IsBoundary() {
		if r.Index != description.NoIndex {
			return nil, fmt.Errorf("%w: %s", graph.ErrDanglingEndpoint, r)
		}
		if source {
			if i, ok := a.inputs[r.Name]; ok {
				return []Endpoint{{Instance: -1, Name: r.Name, Kind: a.plan.Inputs[i].Kind}}, nil
			}
			if _, ok := a.outputs[r.Name]; ok {
				return nil, fmt.Errorf("%w: output %q used as source", graph.ErrDirection, r.Name)
			}
		} else {
			if i, ok := a.outputs[r.Name]; ok {
				return []Endpoint{{Instance: -1, Name: r.Name, Kind: a.plan.Outputs[i].Kind}}, nil
			}
			if _, ok := a.inputs[r.Name]; ok {
				return nil, fmt.Errorf("%w: input %q used as destination", graph.ErrDirection, r.Name)
			}
		}
		return nil, fmt.Errorf("%w: %s", graph.ErrDanglingEndpoint, r)
	}

	instances, ok := a.decls[r.Name]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", graph.ErrDanglingEndpoint, r.Name)
	}
	if r.Index != description.NoIndex {
		if r.Index >= len(instances) || a.plan.Instances[instances[0]].Count == 0 {
			return nil, fmt.Errorf("%w: %s is out of range", graph.ErrDanglingEndpoint, r)
		}
		instances = instances[r.Index : r.Index+1]
	}
	name := r.EndpointName()
	endpoints := make([]Endpoint, 0, len(instances))
	for _, i := range instances {
		inst := a.plan.Instances[i]
		idx := graph.IndexOf(inst.Endpoints, name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s has no endpoint %q", graph.ErrDanglingEndpoint, inst.Name, name)
		}
		d := inst.Endpoints[idx]
		if source != (d.Direction == graph.Output) {
			return nil, fmt.Errorf("%w: %s.%s is %v", graph.ErrDirection, inst.Name, name, d.Direction)
		}
		endpoints = append(endpoints, Endpoint{Instance: i, Name: name, Kind: d.Kind})
	}
	return endpoints, nil
}
