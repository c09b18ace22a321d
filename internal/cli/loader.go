package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/regen/internal/compiler"
	"github.com/roach88/regen/internal/document"
)

// LoadError represents an error that occurred while loading a history.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
// Semantic validation codes (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeUnsupported = "E002" // Unsupported history format
	ErrCodeNoHistory   = "E003" // No history value in CUE input
	ErrCodeLoadFailed  = "E004" // CUE load or YAML parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or history compile failed
	ErrCodeStore       = "E007" // Database error
	ErrCodeRegen       = "E008" // Regeneration did not succeed
	ErrCodeDrift       = "E009" // Stored identity map drifted
)

// LoadHistory reads a history document from a .cue file, a directory of
// CUE files (one package) or a .yaml/.yml file. CUE input must define a
// top-level history value.
func LoadHistory(path string) (*document.Document, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("history not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing history: %v", err)}
	}

	if info.IsDir() {
		return loadCUEDir(path)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return loadCUEFile(path)
	case ".yaml", ".yml":
		d, err := document.LoadYAML(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		return d, nil
	default:
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("unsupported history format %q (want .cue, .yaml or .yml)", filepath.Ext(path)),
		}
	}
}

func loadCUEFile(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return compileValue(value)
}

func loadCUEDir(dir string) (*document.Document, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return compileValue(value)
}

func compileValue(value cue.Value) (*document.Document, error) {
	history := value.LookupPath(cue.ParsePath("history"))
	if !history.Exists() {
		return nil, &LoadError{Code: ErrCodeNoHistory, Message: "no history found"}
	}
	d, err := compiler.CompileHistory(history)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return d, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
}

// loadErrorCode returns the code of a LoadHistory error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
