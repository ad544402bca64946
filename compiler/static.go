package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"go.uber.org/multierr"

	"pipelined.dev/graph"
	"pipelined.dev/graph/description"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/param"
)

var (
	// ErrUnsupportedNode is returned when generated code cannot address a
	// node type.
	ErrUnsupportedNode = errors.New("node type cannot be generated")
	// ErrReservedName is returned when a graph endpoint would shadow a
	// method of the generated type. Analyze reports it.
	ErrReservedName = description.ErrReservedName

	float32Type = reflect.TypeOf(float32(0))
	queueType   = reflect.TypeOf(event.Queue{})
)

const (
	graphImport = "pipelined.dev/graph"
	eventImport = "pipelined.dev/graph/event"
	paramImport = "pipelined.dev/graph/param"
)

var staticTemplate = template.Must(template.New("static").Parse(`// Code generated by graphgen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{printf "%q" .}}
{{- end}}
)

// {{.Type}} is the static form of graph {{printf "%q" .Name}}.
type {{.Type}} struct {
{{- range .Exported}}
	{{.Name}} {{.Type}}
{{- end}}
{{if .Fields}}
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
{{end}}
	sampleRate_ float32
	handoff_    *graph.Handoff
	apply_      func(int, float32)
}

var (
	_ graph.Interface      = (*{{.Type}})(nil)
	_ graph.EventInterface = (*{{.Type}})(nil)
)

// New{{.Type}} returns graph initialized with sample rate. Non-positive rate
// is replaced with {{.DefaultRate}}.
func New{{.Type}}(sampleRate float32) *{{.Type}} {
	if sampleRate <= 0 {
		sampleRate = {{.DefaultRate}}
	}
	g := &{{.Type}}{}
{{- range .Constructor}}
	{{.}}
{{- end}}
	g.handoff_ = graph.NewHandoff([]string{ {{- .Settable -}} })
	g.apply_ = g.setSlot_
	g.SetSampleRate(sampleRate)
	return g
}

// Process runs one tick.
func (g *{{.Type}}) Process() {
{{- range .Process}}
	{{.}}
{{- end}}
}

// ProcessSample runs one tick and returns the first stream or value output.
func (g *{{.Type}}) ProcessSample() float32 {
	g.Process()
	return {{.Primary}}
}

func (g *{{.Type}}) setSlot_(slot int, v float32) {
	switch slot {
{{- range .Slots}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	}
}

// SetInput sets value of a graph input or a node value input.
func (g *{{.Type}}) SetInput(name string, v float32) error {
	switch name {
{{- range .SetInput}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	default:
		return graph.ErrUnknownEndpoint
	}
	return nil
}

// SetNormalized maps x in [0, 1] through the input curve and sets the result.
func (g *{{.Type}}) SetNormalized(name string, x float32) error {
	switch name {
{{- range .SetNormalized}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	default:
		return graph.ErrUnknownEndpoint
	}
	return nil
}

// Output returns current value of a stream or value endpoint.
func (g *{{.Type}}) Output(name string) float32 {
	switch name {
{{- range .Output}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	}
	return 0
}

// PushEvent queues event to an event input.
func (g *{{.Type}}) PushEvent(name string, e event.Instance) error {
	switch name {
{{- range .PushEvent}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	}
	return graph.ErrUnknownEndpoint
}

// DrainEvents calls fn for every event pending on the endpoint and clears it.
func (g *{{.Type}}) DrainEvents(name string, fn func(event.Instance)) error {
	var q event.Events
	switch name {
{{- range .DrainEvents}}
	case {{.Match}}:
{{- range .Body}}
		{{.}}
{{- end}}
{{- end}}
	default:
		return graph.ErrUnknownEndpoint
	}
	for i, n := 0, q.Len(); i < n; i++ {
		fn(q.At(i))
	}
	q.Clear()
	return nil
}

// SampleRate returns sample rate nodes are initialized with.
func (g *{{.Type}}) SampleRate() float32 {
	return g.sampleRate_
}

// SetSampleRate initializes all nodes with a new sample rate.
func (g *{{.Type}}) SetSampleRate(sampleRate float32) {
	g.sampleRate_ = sampleRate
{{- range .Init}}
	{{.}}
{{- end}}
}

// Handoff returns handoff for value updates from another goroutine.
func (g *{{.Type}}) Handoff() *graph.Handoff {
	return g.handoff_
}
`))

type staticField struct {
	Name, Type string
}

type staticCase struct {
	Match string
	Body  []string
}

type staticData struct {
	Package       string
	Name          string
	Type          string
	Imports       []string
	Exported      []staticField
	Fields        []staticField
	DefaultRate   string
	Constructor   []string
	Settable      string
	Process       []string
	Primary       string
	Slots         []staticCase
	SetInput      []staticCase
	SetNormalized []staticCase
	Output        []staticCase
	PushEvent     []staticCase
	DrainEvents   []staticCase
	Init          []string
}

// generator renders a validated build as Go source.
type generator struct {
	plan  *Plan
	build *build
	data  staticData
	errs  error

	// exprs holds Go expression addressing every endpoint.
	exprs map[graph.ValueKey]string
	// selves holds Go expression of every node.
	selves map[graph.NodeKey]string
	// shaped holds param.Input field of shaped graph inputs.
	shaped  map[graph.ValueKey]string
	imports map[string]string
}

// GenerateStatic returns formatted Go source of a graph type equivalent to
// the dynamic graph built from the plan. Generated code follows the
// execution order of the dynamic graph.
func GenerateStatic(p *Plan) ([]byte, error) {
	b, err := buildGraph(p)
	if err != nil {
		return nil, err
	}
	gen := generator{
		plan:    p,
		build:   b,
		exprs:   make(map[graph.ValueKey]string),
		selves:  make(map[graph.NodeKey]string),
		shaped:  make(map[graph.ValueKey]string),
		imports: map[string]string{"graph": graphImport, "event": eventImport},
	}
	gen.boundaries()
	gen.nodes()
	if gen.errs != nil {
		return nil, gen.errs
	}
	gen.process()
	gen.methods()
	gen.header()

	var buf bytes.Buffer
	if err := staticTemplate.Execute(&buf, gen.data); err != nil {
		return nil, fmt.Errorf("render %s: %w", p.Name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", p.Name, err)
	}
	return src, nil
}

func (gen *generator) report(where string, err error) {
	gen.errs = multierr.Append(gen.errs, &Diagnostic{Where: where, Err: err})
}

func (gen *generator) header() {
	p := gen.plan
	gen.data.Name = p.Name
	gen.data.Type = exported(p.Name)
	gen.data.Package = p.Package
	if gen.data.Package == "" {
		gen.data.Package = strings.ToLower(p.Name)
	}
	gen.data.DefaultRate = "graph.DefaultSampleRate"
	if p.SampleRate > 0 {
		gen.data.DefaultRate = literal(p.SampleRate)
	}
	for _, path := range gen.imports {
		gen.data.Imports = append(gen.data.Imports, path)
	}
	sort.Strings(gen.data.Imports)
}

func (gen *generator) info(k graph.ValueKey) graph.EndpointInfo {
	info, _ := gen.build.graph.EndpointInfo(k)
	return info
}

func (gen *generator) boundaries() {
	g := gen.build.graph
	for _, k := range append(g.Inputs(), g.Outputs()...) {
		info := gen.info(k)
		field := exported(info.Name)
		gen.exprs[k] = "g." + field
		if info.Kind == graph.Event {
			gen.data.Exported = append(gen.data.Exported, staticField{Name: field, Type: "event.Bus"})
			continue
		}
		gen.data.Exported = append(gen.data.Exported, staticField{Name: field, Type: "float32"})
		if info.Direction != graph.Input {
			continue
		}
		if info.Initial != 0 {
			gen.data.Constructor = append(gen.data.Constructor, fmt.Sprintf("g.%s = %s", field, literal(info.Initial)))
		}
		if info.Spec != (param.Spec{}) {
			in := unexported(info.Name) + "In_"
			gen.shaped[k] = "g." + in
			gen.imports["param"] = paramImport
			gen.data.Fields = append(gen.data.Fields, staticField{Name: in, Type: "param.Input"})
			gen.data.Constructor = append(gen.data.Constructor, fmt.Sprintf("g.%s.Spec = %s", in, specLiteral(info.Spec)))
		}
	}
}

func (gen *generator) nodes() {
	g := gen.build.graph
	for i, inst := range gen.plan.Instances {
		where := fmt.Sprintf("node %q", inst.Name)
		proto := inst.Type.New(inst.Args)
		t := reflect.TypeOf(proto)
		if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct || t.Elem().PkgPath() == "" {
			gen.report(where, fmt.Errorf("%w: %v is not a pointer to named struct", ErrUnsupportedNode, t))
			continue
		}
		if inst.Type.Constructor == "" {
			gen.report(where, fmt.Errorf("%w: %s has no constructor", ErrUnsupportedNode, inst.Type.Name))
			continue
		}
		typeName := t.Elem().String()
		pkg := typeName[:strings.IndexByte(typeName, '.')]
		if path, ok := gen.imports[pkg]; ok && path != t.Elem().PkgPath() {
			gen.report(where, fmt.Errorf("%w: package name %q is used by %s", ErrUnsupportedNode, pkg, path))
			continue
		}
		gen.imports[pkg] = t.Elem().PkgPath()

		field := unexported(inst.Decl)
		self := "g." + field
		if inst.Index == 0 {
			gen.data.Fields = append(gen.data.Fields, staticField{Name: field, Type: fmt.Sprintf("[%d]%s", inst.Count, typeName)})
		} else if inst.Index < 0 {
			gen.data.Fields = append(gen.data.Fields, staticField{Name: field, Type: typeName})
		}
		if inst.Index >= 0 {
			self = fmt.Sprintf("%s[%d]", self, inst.Index)
		}
		gen.selves[gen.build.instances[i]] = self

		args := make([]string, len(inst.Args))
		for j, a := range inst.Args {
			args[j] = literal(a)
		}
		gen.data.Constructor = append(gen.data.Constructor,
			fmt.Sprintf("%s = *%s.%s(%s)", self, pkg, inst.Type.Constructor, strings.Join(args, ", ")))
		if _, ok := proto.(graph.Initializer); ok {
			gen.data.Init = append(gen.data.Init, self+".Init(sampleRate)")
		}

		fields := fieldPaths(reflect.ValueOf(proto).Elem())
		nodeInfo, _ := g.NodeInfo(gen.build.instances[i])
		for j, b := range proto.Bind() {
			suffix, ok := fields[bindingAddr(b)]
			if !ok {
				gen.report(where, fmt.Errorf("%w: endpoint %q is not bound to an exported field", ErrUnsupportedNode, inst.Endpoints[j].Name))
				continue
			}
			gen.exprs[nodeInfo.Endpoints[j]] = self + suffix
		}
	}
	for k := range gen.build.exprs {
		info, _ := g.NodeInfo(k)
		tmp := fmt.Sprintf("tmp%s_", strings.TrimPrefix(info.Name, exprPrefix))
		gen.exprs[info.Endpoints[len(info.Endpoints)-1]] = "g." + tmp
	}
	gen.tmpFields()
}

// tmpFields declares expression temporaries in creation order.
func (gen *generator) tmpFields() {
	for i := 0; i < len(gen.build.exprs); i++ {
		gen.data.Fields = append(gen.data.Fields, staticField{Name: fmt.Sprintf("tmp%d_", i), Type: "float32"})
	}
}

// fieldPaths maps addresses of exported scalar and queue fields of struct s
// to their selectors.
func fieldPaths(s reflect.Value) map[uintptr]string {
	paths := make(map[uintptr]string)
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		v := s.Field(i)
		switch {
		case f.Type == float32Type || f.Type == queueType:
			paths[v.Addr().Pointer()] = "." + f.Name
		case f.Type.Kind() == reflect.Array && (f.Type.Elem() == float32Type || f.Type.Elem() == queueType):
			for j := 0; j < v.Len(); j++ {
				paths[v.Index(j).Addr().Pointer()] = fmt.Sprintf(".%s[%d]", f.Name, j)
			}
		}
	}
	return paths
}

func bindingAddr(b graph.Binding) uintptr {
	if b.Scalar != nil {
		return reflect.ValueOf(b.Scalar).Pointer()
	}
	if q, ok := b.Events.(*event.Queue); ok {
		return reflect.ValueOf(q).Pointer()
	}
	return 0
}

// process renders the tick in execution order of the dynamic graph.
func (gen *generator) process() {
	g := gen.build.graph
	emit := func(format string, args ...interface{}) {
		gen.data.Process = append(gen.data.Process, fmt.Sprintf(format, args...))
	}
	emit("g.handoff_.Pull(g.apply_)")
	for _, k := range g.Settable() {
		if in, ok := gen.shaped[k]; ok && gen.info(k).Spec.Ramp > 0 {
			emit("if %s.Ramping() {", in)
			emit("%s.Advance(&%s)", in, gen.exprs[k])
			emit("}")
		}
	}
	for _, k := range g.Outputs() {
		if gen.info(k).Kind == graph.Event {
			emit("%s.Clear()", gen.exprs[k])
		}
	}
	for _, k := range g.Inputs() {
		if gen.info(k).Kind == graph.Event {
			gen.route(k, emit)
			emit("%s.Clear()", gen.exprs[k])
		}
	}

	for _, nk := range g.Order() {
		info, _ := g.NodeInfo(nk)
		if wire, ok := gen.build.exprs[nk]; ok {
			out := info.Endpoints[len(info.Endpoints)-1]
			emit("%s = %s", gen.exprs[out], gen.sum(gen.plan.Wires[wire].Terms))
			continue
		}
		emit("// %s", info.Name)
		for _, k := range info.Endpoints {
			e := gen.info(k)
			switch {
			case e.Direction == graph.Input && e.Kind.IsScalar():
				if src := g.Source(k); src != graph.NoValue {
					emit("%s = %s", gen.exprs[k], gen.exprs[src])
				}
			case e.Direction == graph.Output && e.Kind == graph.Event:
				emit("%s.Clear()", gen.exprs[k])
			}
		}
		emit("%s.Process()", gen.selves[nk])
		for _, k := range info.Endpoints {
			e := gen.info(k)
			if e.Kind != graph.Event {
				continue
			}
			if e.Direction == graph.Output {
				gen.route(k, emit)
			} else {
				emit("%s.Clear()", gen.exprs[k])
			}
		}
	}

	for _, k := range g.Outputs() {
		if gen.info(k).Kind.IsScalar() {
			if src := g.Source(k); src != graph.NoValue {
				emit("%s = %s", gen.exprs[k], gen.exprs[src])
			}
		}
	}
}

func (gen *generator) route(k graph.ValueKey, emit func(string, ...interface{})) {
	for _, dst := range gen.build.graph.Destinations(k) {
		emit("event.Copy(&%s, &%s)", gen.exprs[dst], gen.exprs[k])
	}
}

// sum renders terms the way expression nodes evaluate them: products left
// to right, every product rounded before it is added.
func (gen *generator) sum(terms []Term) string {
	rendered := make([]string, len(terms))
	for i, t := range terms {
		var factors []string
		if t.Coefficient != 1 || len(t.Factors) == 0 {
			factors = append(factors, "float32("+literal(t.Coefficient)+")")
		}
		for _, f := range t.Factors {
			k, _ := gen.build.graph.Endpoint(gen.plan.Path(f))
			factors = append(factors, gen.exprs[k])
		}
		rendered[i] = strings.Join(factors, " * ")
	}
	if len(rendered) == 1 {
		return rendered[0]
	}
	for i := range rendered {
		rendered[i] = "float32(" + rendered[i] + ")"
	}
	return strings.Join(rendered, " + ")
}

// methods renders dispatch by endpoint name.
func (gen *generator) methods() {
	g := gen.build.graph
	var settable []string
	for slot, k := range g.Settable() {
		info := gen.info(k)
		settable = append(settable, strconv.Quote(info.Path))
		set := fmt.Sprintf("%s = v", gen.exprs[k])
		normalized := fmt.Sprintf("%s = x", gen.exprs[k])
		if in, ok := gen.shaped[k]; ok {
			set = fmt.Sprintf("%s.Set(&%s, v)", in, gen.exprs[k])
			normalized = fmt.Sprintf("%s.SetNormalized(&%s, x)", in, gen.exprs[k])
		}
		gen.data.Slots = append(gen.data.Slots, staticCase{Match: strconv.Itoa(slot), Body: []string{set}})
		gen.data.SetInput = append(gen.data.SetInput, staticCase{Match: strconv.Quote(info.Path), Body: []string{set}})
		gen.data.SetNormalized = append(gen.data.SetNormalized, staticCase{Match: strconv.Quote(info.Path), Body: []string{normalized}})
	}
	gen.data.Settable = strings.Join(settable, ", ")

	gen.data.Primary = "0"
	if k := g.Primary(); k != graph.NoValue {
		gen.data.Primary = gen.exprs[k]
	}

	var notSettable, notEventInput, notEvent []string
	for _, k := range g.Endpoints() {
		info := gen.info(k)
		expr, ok := gen.exprs[k]
		if !ok || strings.HasPrefix(info.Path, exprPrefix) {
			continue
		}
		path := strconv.Quote(info.Path)
		if !settableInfo(info) {
			notSettable = append(notSettable, path)
		}
		if info.Kind == graph.Event {
			if info.Direction == graph.Input {
				gen.data.PushEvent = append(gen.data.PushEvent, staticCase{Match: path, Body: []string{fmt.Sprintf("return %s.Push(e)", expr)}})
			} else {
				notEventInput = append(notEventInput, path)
			}
			gen.data.DrainEvents = append(gen.data.DrainEvents, staticCase{Match: path, Body: []string{fmt.Sprintf("q = &%s", expr)}})
			continue
		}
		notEventInput = append(notEventInput, path)
		notEvent = append(notEvent, path)
		gen.data.Output = append(gen.data.Output, staticCase{Match: path, Body: []string{"return " + expr}})
	}
	if len(notSettable) > 0 {
		c := staticCase{Match: strings.Join(notSettable, ", "), Body: []string{"return graph.ErrNotSettable"}}
		gen.data.SetInput = append(gen.data.SetInput, c)
		gen.data.SetNormalized = append(gen.data.SetNormalized, c)
	}
	if len(notEventInput) > 0 {
		gen.data.PushEvent = append(gen.data.PushEvent, staticCase{Match: strings.Join(notEventInput, ", "), Body: []string{"return graph.ErrNotSettable"}})
	}
	if len(notEvent) > 0 {
		gen.data.DrainEvents = append(gen.data.DrainEvents, staticCase{Match: strings.Join(notEvent, ", "), Body: []string{"return graph.ErrKindMismatch"}})
	}
}

// settableInfo mirrors endpoints accepted by Graph.SetValue.
func settableInfo(info graph.EndpointInfo) bool {
	if info.Direction != graph.Input {
		return false
	}
	if info.Boundary() {
		return info.Kind.IsScalar()
	}
	return info.Kind == graph.Value
}

func literal(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func specLiteral(s param.Spec) string {
	curve := "param.Linear"
	if s.Curve == param.Logarithmic {
		curve = "param.Logarithmic"
	}
	return fmt.Sprintf("param.Spec{Min: %s, Max: %s, Bounded: %t, Curve: %s, Ramp: %d}",
		literal(s.Min), literal(s.Max), s.Bounded, curve, s.Ramp)
}

func exported(name string) string {
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func unexported(name string) string {
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
