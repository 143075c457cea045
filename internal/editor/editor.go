// Package editor is a headless stand-in for the editor-side execution
// environment. It answers bridge request frames from project files on disk.
package editor

// file: internal/editor/editor.go

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dkoosis/unitybridge/internal/analyzer"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/project"
	"github.com/dkoosis/unitybridge/internal/protocol"
)

// Method names served by the editor.
const (
	MethodGetScripts     = "get_scripts"
	MethodAnalyzeCSFiles = "analyze_cs_files"
	MethodGetEditorInfo  = "get_editor_info"
)

// DefaultMaxFileSizeBytes applies when a get_scripts request omits the limit.
const DefaultMaxFileSizeBytes = 50000

// MethodFunc executes one method against raw JSON parameters.
type MethodFunc func(ctx context.Context, params json.RawMessage) (*protocol.Response, error)

// Options configures an Editor.
type Options struct {
	Provider project.Provider
	Analyzer analyzer.Analyzer
	Logger   logging.Logger
	// RequestsPerSecond limits request handling per connection. Zero or
	// less means unlimited.
	RequestsPerSecond float64
	Burst             int
	// AnalysisWorkers bounds concurrent file analysis. Defaults to GOMAXPROCS.
	AnalysisWorkers int
}

// Editor executes bridge calls.
type Editor struct {
	provider project.Provider
	analyzer analyzer.Analyzer
	logger   logging.Logger
	rps      float64
	burst    int
	workers  int
	methods  map[string]MethodFunc
}

// New creates an editor over opts.Provider.
func New(opts Options) (*Editor, error) {
	if opts.Provider == nil {
		return nil, errors.New("editor requires a project provider")
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.LineHeuristic{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetNoopLogger()
	}
	if opts.AnalysisWorkers <= 0 {
		opts.AnalysisWorkers = runtime.GOMAXPROCS(0)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	e := &Editor{
		provider: opts.Provider,
		analyzer: opts.Analyzer,
		logger:   opts.Logger.WithField("component", "editor"),
		rps:      opts.RequestsPerSecond,
		burst:    opts.Burst,
		workers:  opts.AnalysisWorkers,
	}
	e.methods = map[string]MethodFunc{
		MethodGetScripts:     e.getScripts,
		MethodAnalyzeCSFiles: e.analyzeFiles,
		MethodGetEditorInfo:  e.editorInfo,
	}
	return e, nil
}

// Methods lists the served method names, sorted.
func (e *Editor) Methods() []string {
	names := make([]string, 0, len(e.methods))
	for name := range e.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Editor) newLimiter() *rate.Limiter {
	if e.rps <= 0 {
		return rate.NewLimiter(rate.Inf, e.burst)
	}
	return rate.NewLimiter(rate.Limit(e.rps), e.burst)
}

// Handle executes method and always returns an envelope. Failures become
// success:false envelopes with a taxonomy type.
func (e *Editor) Handle(ctx context.Context, method string, params json.RawMessage) (resp *protocol.Response) {
	fn, ok := e.methods[method]
	if !ok {
		return protocol.FailureFromError(protocol.NewUnknownCallError(method))
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Method panicked.", "method", method, "panic", r)
			resp = protocol.NewFailure(protocol.KindInternal, "Internal editor error",
				fmt.Sprintf("panic in %s: %v", method, r))
		}
	}()

	out, err := fn(ctx, params)
	if err != nil {
		e.logger.Warn("Method failed.", "method", method, "error", err)
		kind := protocol.KindOf(err)
		if kind == protocol.KindInternal {
			kind = protocol.KindCallExecution
		}
		msg := protocol.Detail(err)
		return protocol.NewFailure(kind, msg, msg)
	}
	return out
}

// analyzeFiles runs the analyzer over every script, keeping the listing
// order. Files that cannot be read are reported with an error entry.
func (e *Editor) analyzeFiles(ctx context.Context, raw json.RawMessage) (*protocol.Response, error) {
	var params struct {
		SearchPattern *string `json:"searchPattern"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	scripts, err := e.provider.ListScripts(ctx)
	if err != nil {
		return nil, err
	}

	var selected []project.ScriptFile
	for _, s := range scripts {
		if params.SearchPattern == nil || project.MatchPattern(*params.SearchPattern, s.Path) {
			selected = append(selected, s)
		}
	}

	results := make([]FileAnalysis, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, s := range selected {
		g.Go(func() error {
			text, err := e.provider.ReadScript(gctx, s.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i] = FileAnalysis{FilePath: s.Path, Error: err.Error()}
				return nil
			}
			findings := e.analyzer.Analyze(text)
			results[i] = FileAnalysis{FilePath: s.Path, Findings: &findings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "analysis interrupted")
	}

	return protocol.NewSuccess(fmt.Sprintf("Analyzed %d .cs files", len(results)),
		map[string]interface{}{"files": results})
}

// FileAnalysis is one entry of analyze_cs_files. Either the findings or
// Error is set.
type FileAnalysis struct {
	FilePath string `json:"filePath"`
	*analyzer.Findings
	Error string `json:"error,omitempty"`
}

func (e *Editor) editorInfo(_ context.Context, _ json.RawMessage) (*protocol.Response, error) {
	return protocol.NewSuccess("Editor information retrieved", map[string]interface{}{
		"protocolVersion": protocol.ProtocolVersion,
		"projectName":     e.provider.Name(),
		"projectRoot":     e.provider.Root(),
		"editor":          "unitybridge-headless",
	})
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocol.NewError(protocol.KindValidation, "invalid parameters", err)
	}
	return nil
}
