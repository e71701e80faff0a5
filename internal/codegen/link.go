package codegen

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CodePointer is an installed, executable mapping of a trace's compiled
// function: Entry is the address to call with (ctx, length) and Exits
// mirrors Native.ExitSymbols, one address per side exit (§4.7 Artifact
// lifecycle). A Linker hands one of these back once the object code is
// mapped executable.
type CodePointer struct {
	Entry uintptr
	Exits []uintptr

	// mapping is the raw mmap'd region, kept so Close can unmap it.
	mapping []byte
}

// Close unmaps the executable region. Safe to call on a CodePointer whose
// Linker never actually mapped anything (nopLinker).
func (c *CodePointer) Close() error {
	if c.mapping == nil {
		return nil
	}
	return unix.Munmap(c.mapping)
}

// Linker turns a Native module into installed, executable code (§4.7
// [EXPANDED] Artifact lifecycle). Production code shells to an external
// toolchain; tests use nopLinker so internal/codegen's IR-construction
// logic is exercised without requiring clang/llc on the test machine —
// concretely the Open Question's "may target any native code generator".
type Linker interface {
	Link(n *Native) (*CodePointer, error)
}

// ExternalLinker renders n.Module's textual LLVM IR to a temp file and
// shells out to clang to produce a position-independent shared object.
// It does not map that object into memory: Link always ends in an error
// (see Link), so it never returns a CodePointer.
type ExternalLinker struct {
	// ClangPath defaults to "clang" (resolved via PATH) if empty.
	ClangPath string
	WorkDir   string
}

func (l *ExternalLinker) clang() string {
	if l.ClangPath != "" {
		return l.ClangPath
	}
	return "clang"
}

// Link writes n.Module's IR and compiles it to a shared object with
// -shared -fPIC; it neither reads the object back nor maps it. Parsing out
// real symbol offsets from the compiled object requires an ELF/Mach-O
// reader this package intentionally does not own (out of scope, §1
// "memory allocator for heap values" and friends are external
// collaborators too) — Link reports an error rather than guess, so a
// caller without a real toolchain installed gets a clear failure instead
// of a corrupt CodePointer.
func (l *ExternalLinker) Link(n *Native) (*CodePointer, error) {
	dir := l.WorkDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "vecjit-jit-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
	}

	irPath := filepath.Join(dir, n.TraceID+".ll")
	objPath := filepath.Join(dir, n.TraceID+".so")

	if err := os.WriteFile(irPath, []byte(n.Module.String()), 0o644); err != nil {
		return nil, fmt.Errorf("codegen: write IR: %w", err)
	}

	cmd := exec.Command(l.clang(), "-O2", "-shared", "-fPIC", "-o", objPath, irPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("codegen: clang failed: %w\n%s", err, out)
	}

	return nil, fmt.Errorf("codegen: %s built but symbol resolution needs a loader this package does not own", objPath)
}

// nopLinker is the test double: it never shells to an external tool or
// maps memory, it just validates that n's module renders to text without
// panicking and returns a zero-valued CodePointer. Exported as NopLinker
// so package codegen's own tests (and trace/runtime integration tests)
// can exercise Compile end to end without a native toolchain.
type nopLinker struct{}

// NopLinker returns a Linker that renders but never executes generated
// code (§4.7 Open Question escape hatch).
func NopLinker() Linker { return &nopLinker{} }

func (*nopLinker) Link(n *Native) (*CodePointer, error) {
	_ = n.Module.String() // force rendering, catching a malformed module
	return &CodePointer{}, nil
}
