package compiler

import (
	"fmt"

	"pipelined.dev/graph"
)

// exprOutput is the name of expression node output.
const exprOutput = "output"

// exprTerm is a product of coefficient and inputs.
type exprTerm struct {
	coefficient float32
	inputs      []int
}

// exprNode evaluates a sum of products of its stream inputs. Dynamic graphs
// use it where a connection combines several sources.
//
// Every expression node has its own endpoint descriptors, because their
// number depends on the expression.
type exprNode struct {
	terms     []exprTerm
	in        []float32
	out       float32
	endpoints []graph.EndpointDescriptor
}

func newExprNode(terms []Term) *exprNode {
	n := &exprNode{}
	for _, t := range terms {
		et := exprTerm{coefficient: t.Coefficient}
		for range t.Factors {
			et.inputs = append(et.inputs, len(n.in))
			n.in = append(n.in, 0)
		}
		n.terms = append(n.terms, et)
	}
	for i := range n.in {
		n.endpoints = append(n.endpoints, graph.StreamInput(fmt.Sprintf("in%d", i)))
	}
	n.endpoints = append(n.endpoints, graph.StreamOutput(exprOutput))
	return n
}

func (n *exprNode) Endpoints() []graph.EndpointDescriptor {
	return n.endpoints
}

func (n *exprNode) Bind() []graph.Binding {
	b := make([]graph.Binding, 0, len(n.in)+1)
	for i := range n.in {
		b = append(b, graph.Scalar(&n.in[i]))
	}
	return append(b, graph.Scalar(&n.out))
}

// Process evaluates terms left to right. Every product is rounded before it
// is added, which matches generated code.
func (n *exprNode) Process() {
	var sum float32
	for i, t := range n.terms {
		p := t.coefficient
		for _, in := range t.inputs {
			p = p * n.in[in]
		}
		if i == 0 {
			sum = float32(p)
			continue
		}
		sum = sum + float32(p)
	}
	n.out = sum
}
