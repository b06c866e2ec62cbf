package modelcar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultIgnorePatterns drops docs, git metadata, the original checkpoints
// and non-PyTorch weight formats.
var DefaultIgnorePatterns = []string{
	"*.md",
	"*.txt",
	".gitattributes",
	"original/*",
	"*.msgpack",
	"*.h5",
}

// DownloadOptions selects a model snapshot and where to put it
type DownloadOptions struct {
	ModelID     string
	Revision    string
	OutputDir   string
	Ignore      []string
	Concurrency int

	// Progress is called after each completed file. It may be called
	// concurrently.
	Progress func(file string, size int64)
}

// Snapshot is a downloaded model repository
type Snapshot struct {
	ModelID  string
	Revision string
	SHA      string
	Dir      string
	Files    []string
	Size     int64
}

// Download fetches every non-ignored file of a model into opts.OutputDir
func Download(ctx context.Context, hub *HubClient, opts DownloadOptions) (*Snapshot, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("model ID is required")
	}
	if opts.Revision == "" {
		opts.Revision = "main"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "/models"
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnorePatterns
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}

	ignore, err := compilePatterns(opts.Ignore)
	if err != nil {
		return nil, err
	}

	info, err := hub.ModelInfo(ctx, opts.ModelID, opts.Revision)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", opts.ModelID, err)
	}

	var files []string
	for _, s := range info.Siblings {
		if matchesAny(ignore, s.RFilename) {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(s.RFilename)) {
			return nil, fmt.Errorf("refusing to write %q outside the output directory", s.RFilename)
		}
		files = append(files, s.RFilename)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("model %s@%s has no files left after filtering", opts.ModelID, opts.Revision)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var (
		mu    sync.Mutex
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			n, err := downloadFile(gctx, hub, opts, file)
			if err != nil {
				return err
			}
			mu.Lock()
			total += n
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(file, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{
		ModelID:  opts.ModelID,
		Revision: opts.Revision,
		SHA:      info.SHA,
		Dir:      opts.OutputDir,
		Files:    files,
		Size:     total,
	}, nil
}

// downloadFile writes through a temporary file that is renamed into place
// once complete.
func downloadFile(ctx context.Context, hub *HubClient, opts DownloadOptions, file string) (int64, error) {
	dest := filepath.Join(opts.OutputDir, filepath.FromSlash(file))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := hub.Download(ctx, opts.ModelID, opts.Revision, file, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}

// Ignored reports whether file matches one of the shell-style patterns.
// Unlike path.Match, "*" also matches "/", so "*.md" ignores nested docs.
func Ignored(file string, patterns []string) (bool, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return false, err
	}
	return matchesAny(compiled, file), nil
}

func matchesAny(patterns []*regexp.Regexp, file string) bool {
	for _, re := range patterns {
		if re.MatchString(file) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(translatePattern(p))
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// translatePattern turns a shell-style pattern into an anchored regexp:
// "*" matches any run of characters, "?" one character, "[...]" a class.
func translatePattern(p string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := strings.IndexByte(p[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}
