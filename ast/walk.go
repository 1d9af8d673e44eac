package ast

// Walk performs a pre-order traversal of the given expression tree,
// invoking visit for each node. If visit returns false for a node, its
// children are not traversed.
func Walk(e ExprNode, visit func(ExprNode) bool) {
	if !visit(e) {
		return
	}
	switch e := e.(type) {
	case *ChoiceNode:
		for _, alt := range e.Alts {
			Walk(alt, visit)
		}
	case *SeqNode:
		for _, item := range e.Items {
			Walk(item, visit)
		}
	case *RepeatNode:
		Walk(e.Expr, visit)
	}
}
