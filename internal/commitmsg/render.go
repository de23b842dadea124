package commitmsg

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"
	"unicode"
	"unicode/utf8"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

const templateName = "commitmsg"

// TemplateError describes why a commit message template could not be
// rendered.
type TemplateError struct {
	Reason string
	// Line is the 1-based line number of the error, 0 if unknown.
	Line int
}

func (e *TemplateError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d", e.Reason, e.Line)
	}

	return e.Reason
}

var filters = template.FuncMap{
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"trim":       strings.TrimSpace,
	"capitalize": capitalize,
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// templateIdentifier returns the name under that an attribute is available
// in templates.
func templateIdentifier(attrName string) string {
	return strings.ReplaceAll(attrName, "-", "_")
}

func funcMap(pr *pullrequest.Snapshot) template.FuncMap {
	result := make(template.FuncMap, len(filters)+len(pullrequest.AttributeNames()))

	for k, v := range filters {
		result[k] = v
	}

	for _, name := range pullrequest.AttributeNames() {
		name := name
		result[templateIdentifier(name)] = func() (string, error) {
			v, err := pr.Attribute(name)
			if err != nil {
				return "", err
			}

			return pullrequest.FormatValue(v), nil
		}
	}

	return result
}

var (
	undefinedFuncRe = regexp.MustCompile(`function "([^"]+)" not defined`)
	errLocationRe   = regexp.MustCompile(`^template: [^:]+:(\d+):(?:\d+:)?\s*(.*)$`)
)

// Render renders text with the attributes of pr.
// Text without template actions is returned unchanged.
func Render(text string, pr *pullrequest.Snapshot) (string, error) {
	text = normalizeNewlines(text)
	if text == "" {
		return "", nil
	}

	funcs := funcMap(pr)

	templ, err := template.New(templateName).Funcs(funcs).Parse(text)
	if err != nil {
		if m := undefinedFuncRe.FindStringSubmatch(err.Error()); m != nil {
			return "", &pullrequest.UnknownAttributeError{Name: m[1]}
		}

		return "", toTemplateError(err)
	}

	for _, t := range templ.Templates() {
		if t.Name() != templateName {
			return "", &TemplateError{Reason: "template definitions are not allowed"}
		}
	}

	if templ.Tree != nil && templ.Tree.Root != nil {
		if err := validateNodes(templ.Tree, templ.Tree.Root, funcs); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	if err := templ.Execute(&sb, nil); err != nil {
		var unknownErr *pullrequest.UnknownAttributeError
		if errors.As(err, &unknownErr) {
			return "", unknownErr
		}

		return "", toTemplateError(err)
	}

	return sb.String(), nil
}

func toTemplateError(err error) *TemplateError {
	m := errLocationRe.FindStringSubmatch(err.Error())
	if m == nil {
		return &TemplateError{Reason: err.Error()}
	}

	line, _ := strconv.Atoi(m[1])

	return &TemplateError{Reason: m[2], Line: line}
}

func nodeError(tree *parse.Tree, node parse.Node, reason string) *TemplateError {
	location, _ := tree.ErrorContext(node)

	var line int
	// location has the format NAME:LINE:COL
	if parts := strings.Split(location, ":"); len(parts) >= 3 {
		line, _ = strconv.Atoi(parts[len(parts)-2])
	}

	return &TemplateError{Reason: reason, Line: line}
}

func validateNodes(tree *parse.Tree, node parse.Node, funcs template.FuncMap) error {
	switch n := node.(type) {
	case *parse.ListNode:
		for _, child := range n.Nodes {
			if err := validateNodes(tree, child, funcs); err != nil {
				return err
			}
		}

		return nil

	case *parse.TextNode, *parse.CommentNode:
		return nil

	case *parse.ActionNode:
		return validatePipe(tree, n.Pipe, funcs)

	case *parse.IfNode, *parse.RangeNode, *parse.WithNode,
		*parse.TemplateNode, *parse.BreakNode, *parse.ContinueNode:
		return nodeError(tree, node, "control structures are not allowed")

	default:
		return nodeError(tree, node, fmt.Sprintf("unsupported expression %q", node.String()))
	}
}

func validatePipe(tree *parse.Tree, pipe *parse.PipeNode, funcs template.FuncMap) error {
	if len(pipe.Decl) > 0 {
		return nodeError(tree, pipe, "variables are not allowed")
	}

	for _, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			switch a := arg.(type) {
			case *parse.IdentifierNode:
				if _, exist := funcs[a.Ident]; !exist {
					return &pullrequest.UnknownAttributeError{Name: a.Ident}
				}

			case *parse.StringNode:

			default:
				return nodeError(tree, arg, fmt.Sprintf("unsupported expression %q, only attributes and filters can be used", arg.String()))
			}
		}
	}

	return nil
}
