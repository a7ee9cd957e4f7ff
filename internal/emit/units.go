package emit

import (
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"cbind/internal/cdecl"
)

const header = "// Code generated by cbind. DO NOT EDIT.\n\n"

const puregoImport = "github.com/ebitengine/purego"

// Unit is one output file.
type Unit struct {
	Name    string
	Content []byte
}

// Units lays the accumulated bindings out in files: one per type declaration
// plus one for the function container in multi-file mode, a single
// <package>.go otherwise.
func (g *Generator) Units() ([]Unit, error) {
	var types, funcs []*Binding
	for _, b := range g.bindings {
		if b.Kind == cdecl.KindFunction {
			funcs = append(funcs, b)
		} else {
			types = append(types, b)
		}
	}
	container, containerUnsafe := g.container(funcs)

	if !g.cfg.MultiFile {
		var body strings.Builder
		usesUnsafe := containerUnsafe
		for _, b := range types {
			body.WriteString(b.Source)
			body.WriteString("\n\n")
			usesUnsafe = usesUnsafe || b.UsesUnsafe
		}
		body.WriteString(container)
		imports := importList(usesUnsafe, container != "")
		u, err := g.unit(g.cfg.Package+".go", imports, body.String())
		if err != nil {
			return nil, err
		}
		return []Unit{u}, nil
	}

	names := newFileNames()
	units := make([]Unit, 0, len(types)+1)
	var containerFile string
	if container != "" {
		containerFile = names.assign(snake(g.cfg.MethodContainer))
	}
	for _, b := range types {
		u, err := g.unit(names.assign(snake(b.Name)), importList(b.UsesUnsafe, false), b.Source+"\n")
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if container != "" {
		u, err := g.unit(containerFile, importList(containerUnsafe, true), container)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// container renders the function struct, its loader and the library name.
func (g *Generator) container(funcs []*Binding) (string, bool) {
	if len(funcs) == 0 {
		return "", false
	}
	c := g.cfg.MethodContainer
	usesUnsafe := false
	var sb strings.Builder
	fmt.Fprintf(&sb, "// LibraryName is the native library %s binds against.\n", c)
	fmt.Fprintf(&sb, "const LibraryName = %q\n\n", g.cfg.Library)
	fmt.Fprintf(&sb, "// %s holds the functions of %s. Call %s before use.\n", c, g.cfg.Library, loaderName(c))
	fmt.Fprintf(&sb, "var %s struct {\n", c)
	for _, b := range funcs {
		sb.WriteString(b.Source)
		sb.WriteString("\n")
		usesUnsafe = usesUnsafe || b.UsesUnsafe
	}
	sb.WriteString("}\n\n")
	fmt.Fprintf(&sb, "// %s binds every %s function to the library loaded at handle.\n", loaderName(c), c)
	fmt.Fprintf(&sb, "func %s(handle uintptr) {\n", loaderName(c))
	for _, b := range funcs {
		sb.WriteString("\t")
		sb.WriteString(b.Register)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String(), usesUnsafe
}

func importList(usesUnsafe, usesPurego bool) []string {
	var out []string
	if usesUnsafe {
		out = append(out, "unsafe")
	}
	if usesPurego {
		out = append(out, puregoImport)
	}
	return out
}

func (g *Generator) unit(name string, imports []string, body string) (Unit, error) {
	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "package %s\n\n", g.cfg.Package)
	switch len(imports) {
	case 0:
	case 1:
		fmt.Fprintf(&sb, "import %q\n\n", imports[0])
	default:
		sb.WriteString("import (\n")
		for i, imp := range imports {
			// stdlib first, then a blank line before third-party
			if i > 0 && !strings.Contains(imports[i-1], ".") && strings.Contains(imp, ".") {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "\t%q\n", imp)
		}
		sb.WriteString(")\n\n")
	}
	sb.WriteString(body)
	out, err := format.Source([]byte(sb.String()))
	if err != nil {
		return Unit{}, fmt.Errorf("emit: format %s: %w", name, err)
	}
	return Unit{Name: name, Content: out}, nil
}

// Write stores units under dir, replacing each file atomically. It returns
// the written paths in unit order.
func Write(ctx context.Context, dir string, units []Unit) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, len(units))
	if len(units) == 0 {
		return paths, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(units)))
	for i, u := range units {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			p := filepath.Join(dir, u.Name)
			if err := writeAtomic(p, u.Content); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
			// индексы уникальны, мьютекс не нужен
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".cbind-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// атомарная замена
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
