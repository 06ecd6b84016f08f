package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sourcegraph/conc/pool"

	"github.com/spanyaml/spanyaml/pkg/console"
	"github.com/spanyaml/spanyaml/pkg/tree"
)

// MaxConcurrentChecks bounds how many files are validated at once.
const MaxConcurrentChecks = 8

// checkResult holds the outcome of validating one file.
type checkResult struct {
	file        string
	diagnostics []console.Diagnostic
	err         error
}

// CheckFiles validates YAML files against the JSON schema at
// schemaPath, reporting each violation with the source location of
// the offending node. Files are validated concurrently; output is
// grouped per file in argument order. The returned error is non-nil
// when any file failed.
func CheckFiles(files []string, schemaPath string) error {
	schema, err := compileSchema(schemaPath)
	if err != nil {
		return err
	}

	p := pool.NewWithResults[checkResult]().WithMaxGoroutines(MaxConcurrentChecks)
	for _, file := range files {
		file := file
		p.Go(func() checkResult {
			return checkFile(schema, file)
		})
	}
	results := p.Wait()

	byFile := make(map[string]checkResult, len(results))
	for _, r := range results {
		byFile[r.file] = r
	}

	failed := 0
	for _, file := range files {
		r := byFile[file]
		if r.err != nil {
			failed++
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(r.err.Error()))
			continue
		}
		if len(r.diagnostics) > 0 {
			failed++
			for _, d := range r.diagnostics {
				fmt.Fprint(os.Stderr, console.FormatDiagnostic(d))
			}
			continue
		}
		fmt.Println(console.FormatSuccessMessage(file))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(files))
	}
	return nil
}

// compileSchema loads and compiles a JSON schema from disk.
func compileSchema(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	var schemaDoc any
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schemaURL := "http://spanyaml.localhost/schema.json"
	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

func checkFile(schema *jsonschema.Schema, file string) checkResult {
	data, err := os.ReadFile(file)
	if err != nil {
		return checkResult{file: file, err: fmt.Errorf("failed to read %s: %w", file, err)}
	}

	root, err := tree.Parse(0, data)
	if err != nil {
		return checkResult{file: file, err: fmt.Errorf("%s: %w", file, err)}
	}

	// Validate a plainly-typed rendition of the document; the marked
	// tree is only consulted afterwards, to translate violation
	// locations back into source coordinates.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return checkResult{file: file, err: fmt.Errorf("%s: %w", file, err)}
	}
	normalized, err := normalizeForValidation(doc)
	if err != nil {
		return checkResult{file: file, err: fmt.Errorf("%s: %w", file, err)}
	}

	err = schema.Validate(normalized)
	if err == nil {
		return checkResult{file: file}
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return checkResult{file: file, err: fmt.Errorf("%s: %w", file, err)}
	}

	var diagnostics []console.Diagnostic
	for _, cause := range leafCauses(ve) {
		node := deepest(root, cause.InstanceLocation)
		position := console.Position{File: file}
		var context []string
		contextStart := 0
		if m := node.Span().Start(); m != nil {
			position.Line, position.Column = m.Line(), m.Column()
			context, contextStart = contextAround(data, m.Line())
		}
		diagnostics = append(diagnostics, console.Diagnostic{
			Position:     position,
			Severity:     "error",
			Message:      cause.Error(),
			Context:      context,
			ContextStart: contextStart,
		})
	}
	return checkResult{file: file, diagnostics: diagnostics}
}

// normalizeForValidation round-trips the document through JSON so the
// validator sees the value types it expects.
func normalizeForValidation(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	return normalized, nil
}

// leafCauses flattens a validation error into the individual
// violations at the bottom of its cause tree.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

// contextAround extracts the source lines around the given 1-based
// line, returning them with the line number of the first one.
func contextAround(data []byte, line int) ([]string, int) {
	if line < 1 {
		return nil, 0
	}
	lines := strings.Split(string(data), "\n")
	start := line - 1
	if start < 1 {
		start = 1
	}
	end := line + 1
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return nil, 0
	}
	return lines[start-1 : end], start
}
