package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Library is the immutable db -> design -> view -> ViewDef map built once
// at startup. It is safe for concurrent reads from any number of request
// goroutines since nothing writes to it after Load returns.
type Library struct {
	views map[string]map[string]map[string]*ViewDef
}

// Lookup returns the ViewDef for (db, design, view), or false if no such
// view was loaded.
func (l *Library) Lookup(db, design, view string) (*ViewDef, bool) {
	designs, ok := l.views[db]
	if !ok {
		return nil, false
	}
	byView, ok := designs[design]
	if !ok {
		return nil, false
	}
	def, ok := byView[view]
	return def, ok
}

// LoadError records one view file that failed to parse; load continues
// past it rather than aborting startup.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Load walks folder/{db}/{design}/{view}.toml, parsing each file into a
// ViewDef. Invalid files are collected as LoadErrors and skipped rather
// than failing the whole load, so one bad file doesn't take down every
// view in the library.
func Load(folder string) (*Library, []LoadError) {
	lib := &Library{views: map[string]map[string]map[string]*ViewDef{}}
	if folder == "" {
		return lib, nil
	}

	var errs []LoadError

	dbEntries, err := os.ReadDir(folder)
	if err != nil {
		return lib, []LoadError{{Path: folder, Err: err}}
	}

	for _, dbEntry := range dbEntries {
		if !dbEntry.IsDir() {
			continue
		}
		db := dbEntry.Name()
		designRoot := filepath.Join(folder, db)
		designEntries, err := os.ReadDir(designRoot)
		if err != nil {
			errs = append(errs, LoadError{Path: designRoot, Err: err})
			continue
		}

		for _, designEntry := range designEntries {
			if !designEntry.IsDir() {
				continue
			}
			design := designEntry.Name()
			viewRoot := filepath.Join(designRoot, design)
			viewFiles, err := os.ReadDir(viewRoot)
			if err != nil {
				errs = append(errs, LoadError{Path: viewRoot, Err: err})
				continue
			}

			for _, viewFile := range viewFiles {
				if viewFile.IsDir() || !strings.HasSuffix(viewFile.Name(), ".toml") {
					continue
				}
				view := strings.TrimSuffix(viewFile.Name(), ".toml")
				path := filepath.Join(viewRoot, viewFile.Name())

				raw, err := os.ReadFile(path)
				if err != nil {
					errs = append(errs, LoadError{Path: path, Err: err})
					continue
				}

				var def ViewDef
				if err := toml.Unmarshal(raw, &def); err != nil {
					errs = append(errs, LoadError{Path: path, Err: err})
					continue
				}

				if lib.views[db] == nil {
					lib.views[db] = map[string]map[string]*ViewDef{}
				}
				if lib.views[db][design] == nil {
					lib.views[db][design] = map[string]*ViewDef{}
				}
				lib.views[db][design][view] = &def
			}
		}
	}

	return lib, errs
}
