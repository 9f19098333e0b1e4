package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
	apperrors "github.com/alexisbeaulieu97/buildgraph/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Loader reads and writes project documents. The encoding follows the file
// extension: .json, or .yaml / .yml.
type Loader struct {
	logger ports.Logger
}

// NewLoader constructs a Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logging.OrNoOp(logger).With("component", "project_loader")}
}

// Load implements ports.ProjectLoader.
func (l *Loader) Load(ctx context.Context, path string) (*graph.Project, error) {
	if err := contextCheck(ctx); err != nil {
		return nil, err
	}
	l.logger.Debug(ctx, "loading project", "path", path)

	doc, err := l.decode(path)
	if err != nil {
		l.logger.Error(ctx, "failed to parse project", "path", path, "error", err)
		return nil, convertError(err, path)
	}
	if err := contextCheck(ctx); err != nil {
		return nil, err
	}

	project, err := doc.ToProject()
	if err != nil {
		l.logger.Error(ctx, "project graph failed validation", "path", path, "error", err)
		var domainErr *graph.DomainError
		if errors.As(err, &domainErr) {
			return nil, domainErr.WithContext(map[string]interface{}{"path": path})
		}
		return nil, err
	}

	l.logger.Info(ctx, "project loaded", "path", path, "nodes", project.Graph.Len(), "edges", len(project.Graph.Edges()))
	return project, nil
}

// Validate implements ports.ProjectLoader.
func (l *Loader) Validate(ctx context.Context, path string) error {
	if err := contextCheck(ctx); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return convertError(err, path)
	}
	if info.IsDir() {
		return domainError(graph.ErrCodeValidation, "project path is a directory", nil, map[string]interface{}{"path": path})
	}
	_, err = l.Load(ctx, path)
	return err
}

// Save implements ports.ProjectSaver. The document is written to a
// temporary file first and renamed over path.
func (l *Loader) Save(ctx context.Context, path string, project *graph.Project) error {
	if err := contextCheck(ctx); err != nil {
		return err
	}
	if project == nil {
		return domainError(graph.ErrCodeInternal, "project is nil", nil, nil)
	}

	data, err := Encode(path, project)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domainError(graph.ErrCodeInternal, "failed to create project directory", err, map[string]interface{}{"path": path})
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return domainError(graph.ErrCodeInternal, "failed to write temporary file", err, map[string]interface{}{"path": tmpPath})
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return domainError(graph.ErrCodeInternal, "failed to replace project file", err, map[string]interface{}{"path": path})
	}

	nodes := 0
	if project.Graph != nil {
		nodes = project.Graph.Len()
	}
	l.logger.Info(ctx, "project saved", "path", path, "nodes", nodes)
	return nil
}

// Encode renders project in the encoding selected by the extension of path.
func Encode(path string, project *graph.Project) ([]byte, error) {
	doc, err := FromProject(project)
	if err != nil {
		return nil, err
	}
	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(doc)
		_ = enc.Close()
		data = buf.Bytes()
	default:
		return nil, unsupportedExtension(path, ext)
	}
	if err != nil {
		return nil, domainError(graph.ErrCodeInternal, "failed to encode project", err, map[string]interface{}{"path": path})
	}
	return data, nil
}

func (l *Loader) decode(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, unsupportedExtension(path, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParseError(path, 0, err)
	}

	var doc Document
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.NewParseError(path, jsonLine(data, err), err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.NewParseError(path, yamlLine(err), err)
		}
	}

	if err := ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

var (
	_ ports.ProjectLoader = (*Loader)(nil)
	_ ports.ProjectSaver  = (*Loader)(nil)
)

func convertError(err error, path string) error {
	if err == nil {
		return nil
	}
	var domainErr *graph.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	var parseErr *apperrors.ParseError
	if errors.As(err, &parseErr) {
		if errors.Is(parseErr.Err, os.ErrNotExist) {
			return domainError(graph.ErrCodeNotFound, "project not found", parseErr.Err, map[string]interface{}{"path": path})
		}
		return domainError(graph.ErrCodeValidation, "invalid project syntax", err, map[string]interface{}{"path": parseErr.Path, "line": parseErr.Line})
	}
	var valErr *apperrors.ValidationError
	if errors.As(err, &valErr) {
		context := map[string]interface{}{"path": path}
		if valErr.Field != "" {
			context["field"] = valErr.Field
		}
		return domainError(graph.ErrCodeValidation, valErr.Message, valErr.Err, context)
	}
	if os.IsNotExist(err) {
		return domainError(graph.ErrCodeNotFound, "project not found", err, map[string]interface{}{"path": path})
	}
	return domainError(graph.ErrCodeInternal, "project load failed", err, map[string]interface{}{"path": path})
}

func unsupportedExtension(path, ext string) error {
	return domainError(graph.ErrCodeValidation, "unsupported project file extension", nil, map[string]interface{}{"path": path, "extension": ext})
}

func contextCheck(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return domainError(graph.ErrCodeCancelled, "operation cancelled", err, nil)
	}
	return nil
}

func domainError(code graph.ErrorCode, message string, cause error, ctx map[string]interface{}) *graph.DomainError {
	return &graph.DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: ctx,
	}
}

func yamlLine(err error) int {
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	line, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0
	}
	return line
}

func jsonLine(data []byte, err error) int {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

// flattenFields renders a map as sorted key/value pairs for the logger.
func flattenFields(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}

// Describe formats a load error for terminal output, listing each structural
// problem on its own line.
func Describe(err error) string {
	var domainErr *graph.DomainError
	if !errors.As(err, &domainErr) {
		return err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", domainErr.Code, domainErr.Message)
	if len(domainErr.Context) > 0 {
		fmt.Fprintf(&b, " %v", flattenFields(domainErr.Context))
	}
	for _, problem := range multierr.Errors(domainErr.Cause) {
		fmt.Fprintf(&b, "\n  - %s", problem)
	}
	return b.String()
}
