package manager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/parser"
	"mercator-hq/bdl/pkg/bdl/validator"
	"mercator-hq/bdl/pkg/policy/suite"
)

// Source is a validated document together with the bytes it was read from.
type Source struct {
	Path     string
	Hash     string
	Document *ast.Document
	Warnings []string
}

// Bundle is everything read from one policy directory.
type Bundle struct {
	Sources []*Source
	Suites  []*suite.Suite

	// Errors holds per-file failures; the other files are still usable.
	Errors ErrorList
}

// PolicyLoader handles loading policy documents and test suites from the
// file system.
type PolicyLoader struct {
	config    *PolicyLoaderConfig
	parser    *parser.Parser
	validator *validator.Validator
}

// NewPolicyLoader creates a new policy loader with the given configuration.
func NewPolicyLoader(config *PolicyLoaderConfig) *PolicyLoader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &PolicyLoader{
		config:    config,
		parser:    parser.NewParser().WithMaxFileSize(config.MaxFileSize),
		validator: validator.NewValidator(),
	}
}

// LoadFromFile loads a single document file. It performs file size and UTF-8
// validation, parses the document and runs the validator over it.
func (l *PolicyLoader) LoadFromFile(path string) (*Source, error) {
	data, err := l.readFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := l.parser.ParseBytes(data, path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "parse failed", Cause: err}
	}
	findings := l.validator.Check(doc)
	if err := findings.ToError(); err != nil {
		return nil, &LoadError{FilePath: path, Message: "validation failed", Cause: err}
	}

	sum := sha256.Sum256(data)
	src := &Source{
		Path:     path,
		Hash:     hex.EncodeToString(sum[:]),
		Document: doc,
	}
	for _, w := range findings.Warnings {
		src.Warnings = append(src.Warnings, fmt.Sprintf("%s: %s", path, w.Message))
	}
	return src, nil
}

// LoadSuite loads a single test suite file.
func (l *PolicyLoader) LoadSuite(path string) (*suite.Suite, error) {
	data, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	s, err := suite.Parse(data, path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "invalid test suite", Cause: err}
	}
	return s, nil
}

// Load loads a single document file or every document and suite under a
// directory. Files are processed in lexical path order.
func (l *PolicyLoader) Load(path string) (*Bundle, error) {
	isDir, err := l.IsDirectory(path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		src, err := l.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		return &Bundle{Sources: []*Source{src}}, nil
	}
	return l.LoadFromDirectory(path)
}

// LoadFromDirectory loads all documents and suites from dir recursively.
// A directory with no document files is an error.
func (l *PolicyLoader) LoadFromDirectory(dir string) (*Bundle, error) {
	docFiles, suiteFiles, err := l.collectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(docFiles) == 0 {
		return nil, &LoadError{
			FilePath: dir,
			Message:  "no policy files found in directory",
		}
	}

	b := &Bundle{}
	for _, path := range docFiles {
		src, err := l.LoadFromFile(path)
		if err != nil {
			b.Errors.Add(err)
			continue
		}
		b.Sources = append(b.Sources, src)
	}
	for _, path := range suiteFiles {
		s, err := l.LoadSuite(path)
		if err != nil {
			b.Errors.Add(err)
			continue
		}
		b.Suites = append(b.Suites, s)
	}
	return b, nil
}

// readFile reads path after checking it is a regular file within the size
// limit and valid UTF-8.
func (l *PolicyLoader) readFile(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if fileInfo.Size() > l.config.MaxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", fileInfo.Size(), l.config.MaxFileSize),
		}
	}

	// #nosec G304 - policy paths come from the configured policy directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}
	return data, nil
}

// collectFiles walks dir and splits matching files into documents and suites.
func (l *PolicyLoader) collectFiles(dir string) (docs, suites []string, err error) {
	visited := make(map[string]bool)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden files/directories if configured
		if l.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		target := path
		if d.Type()&fs.ModeSymlink != 0 {
			if !l.config.FollowSymlinks {
				return nil
			}
			realPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				return &LoadError{FilePath: path, Message: "failed to resolve symlink", Cause: err}
			}
			if visited[realPath] {
				return &LoadError{FilePath: path, Message: "symlink loop detected"}
			}
			visited[realPath] = true
			target = realPath
		}

		switch {
		case suite.IsSuiteFile(target):
			suites = append(suites, path)
		case l.hasValidExtension(target):
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, &LoadError{FilePath: dir, Message: "failed to walk directory", Cause: err}
	}

	sort.Strings(docs)
	sort.Strings(suites)
	return docs, suites, nil
}

// hasValidExtension checks if the file has a valid policy file extension.
func (l *PolicyLoader) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, validExt := range l.config.AllowedExtensions {
		if ext == strings.ToLower(validExt) {
			return true
		}
	}
	return false
}

// IsDirectory checks if the given path is a directory.
func (l *PolicyLoader) IsDirectory(path string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, &LoadError{FilePath: path, Message: "path does not exist", Cause: err}
		}
		return false, &LoadError{FilePath: path, Message: "failed to access path", Cause: err}
	}
	return fileInfo.IsDir(), nil
}
