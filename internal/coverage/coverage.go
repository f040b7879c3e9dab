// Package coverage rebuilds the published coverage page for the docs
// site. It replaces the old publish shell script: regenerate the HTML
// report, prepend the front-matter header the site generator expects and
// move the page into the content tree in one rename.
package coverage

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner abstracts the coverage toolchain so the publish sequence can be
// exercised without one installed.
type Runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, out)
	}
	return nil
}

// Publisher writes docs/content/coverage.html under Root.
type Publisher struct {
	Root   string
	Runner Runner
}

func New(root string) *Publisher {
	return &Publisher{Root: root, Runner: execRunner{}}
}

// FindRoot walks up from dir to the directory holding go.mod.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	start := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod above %s", start)
		}
		dir = parent
	}
}

const header = "---\ntitle: Coverage report\n---\n"

// Run regenerates the report and publishes it. The toolchain check comes
// before any write so a machine without go fails with nothing touched.
func (p *Publisher) Run(ctx context.Context) error {
	if _, err := p.Runner.LookPath("go"); err != nil {
		return fmt.Errorf("go toolchain is missing: %w", err)
	}

	covDir := filepath.Join(p.Root, "coverage")
	if err := os.MkdirAll(covDir, 0o755); err != nil {
		return fmt.Errorf("create coverage dir: %w", err)
	}
	profile := filepath.Join(covDir, "coverage.out")
	page := filepath.Join(covDir, "coverage.html")

	if err := p.Runner.Run(ctx, p.Root, "go", "test", "./...", "-coverprofile="+profile); err != nil {
		return fmt.Errorf("run tests: %w", err)
	}
	if err := p.Runner.Run(ctx, p.Root, "go", "tool", "cover", "-html="+profile, "-o", page); err != nil {
		return fmt.Errorf("render coverage page: %w", err)
	}

	html, err := os.ReadFile(page)
	if err != nil {
		return fmt.Errorf("read coverage page: %w", err)
	}

	outDir := filepath.Join(p.Root, "docs", "content")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	tmp := filepath.Join(outDir, "coverage.html.tmp")
	if err := os.WriteFile(tmp, []byte(header), 0o644); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	if _, err := f.Write(html); err != nil {
		f.Close()
		return fmt.Errorf("append report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	final := filepath.Join(outDir, "coverage.html")
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish %s: %w", final, err)
	}
	return nil
}
