package rewards

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	treeSitterPython "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// pythonFunctionNames parses code as Python and returns the names of its
// function definitions in order of appearance, plus whether the parse tree
// contains syntax errors.
func pythonFunctionNames(code string) ([]string, bool) {
	parser := sitter.NewParser()
	defer parser.Close()

	lang := sitter.NewLanguage(treeSitterPython.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, true
	}

	src := []byte(code)
	tree := parser.Parse(src, nil)
	defer tree.Close()

	root := tree.RootNode()

	var names []string
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if node.Kind() == "function_definition" {
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				start, end := nameNode.StartByte(), nameNode.EndByte()
				if end > uint(len(src)) {
					end = uint(len(src))
				}
				if start < end {
					names = append(names, string(src[start:end]))
				}
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child != nil {
				visit(child)
			}
		}
	}
	visit(root)

	return names, root.HasError()
}

// pythonParses reports whether code is syntactically valid Python.
func pythonParses(code string) bool {
	_, hasError := pythonFunctionNames(code)
	return !hasError
}
