package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadError is a roster loading failure before any CUE value exists
// (missing directory, no files, unbuildable instance).
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Load reads every .cue file under dir, unifies them into one instance,
// and compiles the roster declaration.
func Load(dir string) (*Roster, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Path: dir, Message: "roster directory not found"}
	}
	if err != nil {
		return nil, &LoadError{Path: dir, Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Message: "not a directory"}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Message: err.Error()}
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: dir, Message: "no CUE files found"}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Path: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rosterVal := value.LookupPath(cue.ParsePath("roster"))
	if !rosterVal.Exists() {
		return nil, &LoadError{Path: dir, Message: "no roster declaration found"}
	}
	return CompileRoster(rosterVal)
}

// LoadString compiles a roster from CUE source, for tests and stdin.
func LoadString(src string) (*Roster, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	rosterVal := value.LookupPath(cue.ParsePath("roster"))
	if !rosterVal.Exists() {
		return nil, &LoadError{Message: "no roster declaration found"}
	}
	return CompileRoster(rosterVal)
}

func findCUEFiles(dir string) ([]string, error) {
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
