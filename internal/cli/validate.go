package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/analysis"
	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/dom"
	"github.com/roach88/bindery/internal/handlers"
	"github.com/roach88/bindery/internal/model"
	"github.com/roach88/bindery/internal/provider"
	"github.com/roach88/bindery/internal/virtual"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ModelFile string
}

// Issue is one problem found by validate. Errors make the result invalid;
// warnings do not.
type Issue struct {
	Code    string         `json:"code"`
	Level   analysis.Level `json:"level"`
	File    string         `json:"file,omitempty"`
	Node    string         `json:"node,omitempty"`
	Binding string         `json:"binding,omitempty"`
	Message string         `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Order    []string `json:"order,omitempty"`
	Bindings int      `json:"bindings"`
	Issues   []Issue  `json:"issues,omitempty"`
}

// Issue codes.
const (
	IssueOrdering       = "V001"
	IssueSyntax         = "V002"
	IssueUnknownBinding = "V003"
	IssueVirtual        = "V004"
	IssueModel          = "V005"
	IssueDocument       = "V006"
)

// levelError marks issues that make a result invalid.
const levelError analysis.Level = "error"

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [documents...]",
		Short: "Check handler ordering and binding declarations",
		Long: `Check the built-in handler set and, optionally, documents and a
view-model, without binding anything.

The handler set is checked for After cycles, reported as warnings. Each document's data-bind
attributes and virtual element markers are parsed; syntax errors and
bindings disallowed on virtual elements are errors, bindings with no
handler are warnings. --model checks that a view-model file loads.

Examples:
  bindery validate
  bindery validate page.html other.html --model vm.cue
  bindery validate page.html --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ModelFile, "model", "m", "", "view-model file to check")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, docs []string) error {
	formatter := opts.formatter(cmd)

	registry := binding.NewRegistry()
	handlers.Register(registry)

	result := ValidationResult{Issues: []Issue{}}
	graph := analysis.Graph(registry.Dependencies())
	for _, w := range analysis.AnalyzeOrdering(graph) {
		result.Issues = append(result.Issues, Issue{Code: IssueOrdering, Level: w.Level, Message: w.Message})
	}
	if order, err := analysis.Order(graph); err == nil {
		result.Order = order
	}

	for _, path := range docs {
		formatter.VerboseLog("Checking %s", path)
		n, issues := checkDocument(path, registry)
		result.Bindings += n
		result.Issues = append(result.Issues, issues...)
	}

	if opts.ModelFile != "" {
		formatter.VerboseLog("Loading view-model %s", opts.ModelFile)
		if _, err := model.Load(opts.ModelFile); err != nil {
			issue := Issue{Code: IssueModel, Level: levelError, File: opts.ModelFile, Message: err.Error()}
			var le *model.LoadError
			if errors.As(err, &le) {
				issue.Code = le.Code
			}
			result.Issues = append(result.Issues, issue)
		}
	}

	result.Valid = true
	for _, is := range result.Issues {
		if is.Level == levelError {
			result.Valid = false
		}
	}

	if formatter.JSON() {
		if !result.Valid {
			return formatter.Fail(ErrCodeGeneric, result,
				NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues))))
		}
		return formatter.Success(result)
	}

	writeValidateText(cmd.OutOrStdout(), result)
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// checkDocument parses every binding declaration in a document and
// returns how many bindings it declares.
func checkDocument(path string, registry *binding.Registry) (int, []Issue) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, []Issue{{Code: IssueDocument, Level: levelError, File: path, Message: err.Error()}}
	}
	doc, err := dom.Parse(string(src))
	if err != nil {
		return 0, []Issue{{Code: IssueDocument, Level: levelError, File: path, Message: err.Error()}}
	}

	var (
		count  int
		issues []Issue
	)
	dom.Walk(doc, func(n *html.Node) {
		var decl string
		switch n.Type {
		case html.ElementNode:
			decl, _ = dom.Attr(n, provider.Attribute)
		case html.CommentNode:
			decl = virtual.BindingValue(n)
		}
		if decl == "" {
			return
		}
		node := dom.Path(n)
		pairs, err := provider.ParseBindings(decl)
		if err != nil {
			issues = append(issues, Issue{Code: IssueSyntax, Level: levelError, File: path, Node: node, Message: err.Error()})
			return
		}
		for _, p := range pairs {
			count++
			h, ok := registry.Lookup(p.Name)
			switch {
			case !ok:
				issues = append(issues, Issue{
					Code: IssueUnknownBinding, Level: analysis.LevelWarning, File: path, Node: node, Binding: p.Name,
					Message: fmt.Sprintf("no handler for binding %q; it will be ignored", p.Name),
				})
			case n.Type == html.CommentNode && !h.AllowVirtual:
				issues = append(issues, Issue{
					Code: IssueVirtual, Level: levelError, File: path, Node: node, Binding: p.Name,
					Message: fmt.Sprintf("binding %q cannot be used with virtual elements", p.Name),
				})
			}
		}
	})
	return count, issues
}

func writeValidateText(w io.Writer, result ValidationResult) {
	for _, is := range result.Issues {
		loc := is.File
		if is.Node != "" {
			loc += " " + is.Node
		}
		if loc != "" {
			fmt.Fprintf(w, "%s [%s] %s: %s\n", is.Level, is.Code, loc, is.Message)
		} else {
			fmt.Fprintf(w, "%s [%s] %s\n", is.Level, is.Code, is.Message)
		}
	}
	if len(result.Order) > 0 {
		fmt.Fprintf(w, "Handler order: %v\n", result.Order)
	}
	if result.Valid {
		fmt.Fprintf(w, "✓ Validation passed (%d binding(s) checked)\n", result.Bindings)
	}
}
