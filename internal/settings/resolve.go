package settings

import (
	"os"
	"path/filepath"
)

// PathResolution reports how one directory field was resolved.
//
// Resolved && !Fallback means the declared path exists. Resolved && Fallback
// means the computed fallback replaced it. !Resolved means neither path
// exists and the declared value was kept.
type PathResolution struct {
	Declared string `json:"declared" yaml:"declared"`
	Value    string `json:"value" yaml:"value"`
	Resolved bool   `json:"resolved" yaml:"resolved"`
	Fallback bool   `json:"fallback" yaml:"fallback"`
}

// Result is the outcome of Resolve.
type Result struct {
	Settings  Settings       `json:"settings" yaml:"settings"`
	ForumRoot PathResolution `json:"forumRoot" yaml:"forumRoot"`
	Sources   PathResolution `json:"sources" yaml:"sources"`
	Cache     PathResolution `json:"cache" yaml:"cache"`
}

// Unresolved lists the names of the path fields left pointing at nothing.
func (r Result) Unresolved() []string {
	var names []string
	if !r.ForumRoot.Resolved {
		names = append(names, "forumRoot")
	}
	if !r.Sources.Resolved {
		names = append(names, "sources")
	}
	if !r.Cache.Resolved {
		names = append(names, "cache")
	}
	return names
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolver)

// WithExists overrides the filesystem existence check, primarily for tests.
func WithExists(exists func(path string) bool) ResolveOption {
	return func(r *resolver) {
		r.exists = exists
	}
}

type resolver struct {
	exists func(path string) bool
}

// Resolve corrects the three directory fields of declared when they point at
// nothing, the way a moved installation needs.
//
// It assumes the settings artifact lives at the forum root: when the declared
// root is missing and artifactDir contains MarkerFile, artifactDir becomes the
// root. The sources and cache fallbacks are computed from the root after that
// step. Missing paths without a usable fallback are kept as declared. Resolve
// never writes to the filesystem.
func Resolve(declared Settings, artifactDir string, opts ...ResolveOption) Result {
	r := resolver{exists: pathExists}
	for _, opt := range opts {
		opt(&r)
	}

	out := declared
	result := Result{}

	result.ForumRoot = r.resolve(declared.Paths.ForumRoot, artifactDir, filepath.Join(artifactDir, MarkerFile))
	out.Paths.ForumRoot = result.ForumRoot.Value

	root := out.Paths.ForumRoot
	sourcesFallback := filepath.Join(root, sourcesDirName)
	result.Sources = r.resolve(declared.Paths.Sources, sourcesFallback, sourcesFallback)
	out.Paths.Sources = result.Sources.Value

	cacheFallback := filepath.Join(root, cacheDirName)
	result.Cache = r.resolve(declared.Paths.Cache, cacheFallback, cacheFallback)
	out.Paths.Cache = result.Cache.Value

	result.Settings = out
	return result
}

// resolve keeps declared when it exists, otherwise switches to fallback when
// probe exists.
func (r resolver) resolve(declared, fallback, probe string) PathResolution {
	res := PathResolution{Declared: declared, Value: declared}
	if r.exists(declared) {
		res.Resolved = true
		return res
	}
	if r.exists(probe) {
		res.Value = fallback
		res.Resolved = true
		res.Fallback = true
	}
	return res
}

// pathExists matches PHP's file_exists: files and directories both count.
func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
