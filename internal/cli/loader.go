package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/weftlabs/weft/internal/compiler"
	"github.com/weftlabs/weft/internal/spec"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeCompile  = "E101" // Function spec compile error
	ErrCodeRegister = "E102" // Function spec registration error
	ErrCodeNoFuncs  = "E103" // No function specs found
)

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code     string
	Function string
	Message  string
	Pos      token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult contains the function specs loaded from a spec directory.
type LoadResult struct {
	Functions []*spec.FunctionSpec
	FileCount int
}

// LoadSpecs loads CUE files from a directory and compiles every entry
// under the top-level "function" struct, in name order. All compile
// errors are collected rather than failing fast, so one bad spec does
// not mask the rest.
func LoadSpecs(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	var errs []error

	funcsVal := value.LookupPath(cue.ParsePath("function"))
	if funcsVal.Exists() {
		iter, iterErr := funcsVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating functions: %v", iterErr)}}
		}
		for iter.Next() {
			fn, compileErr := compiler.CompileFunction(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, iter.Label()))
				continue
			}
			result.Functions = append(result.Functions, fn)
		}
	}

	if len(result.Functions) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoFuncs, Message: "no function specs found"})
	}

	// Deterministic order regardless of file layout.
	sort.Slice(result.Functions, func(i, j int) bool {
		return result.Functions[i].Name < result.Functions[j].Name
	})

	return result, errs
}

// LoadRegistry loads a spec directory and registers every function,
// surfacing registration failures (bad patterns, duplicate names) the
// same way as compile failures.
func LoadRegistry(dir string) (*spec.Registry, *LoadResult, []error) {
	result, errs := LoadSpecs(dir)
	if result == nil {
		return nil, nil, errs
	}

	reg := spec.NewRegistry()
	for _, fn := range result.Functions {
		if _, err := reg.Register(fn); err != nil {
			errs = append(errs, &LoadError{
				Code:     ErrCodeRegister,
				Function: fn.Name,
				Message:  err.Error(),
			})
		}
	}
	return reg, result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error, function string) *LoadError {
	if compileErr, ok := err.(*compiler.CompileError); ok {
		return &LoadError{
			Code:     ErrCodeCompile,
			Function: function,
			Message:  fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:      compileErr.Pos,
		}
	}
	return &LoadError{
		Code:     ErrCodeCompile,
		Function: function,
		Message:  err.Error(),
	}
}
