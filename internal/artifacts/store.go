package artifacts

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Store resolves contract artifacts by name.
type Store struct {
	dir    string
	bundle map[string][]byte
	source string
}

// Open returns a Store backed by path. A directory is read lazily; a .tar.zst
// or .tzst file is decompressed once and indexed by artifact base name.
func Open(p string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("open artifacts %s: %w", p, err)
	}

	if info.IsDir() {
		return &Store{dir: p, source: p}, nil
	}

	if !isBundle(p) {
		return nil, fmt.Errorf("open artifacts %s: expected a directory or .tar.zst bundle", p)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	entries, err := readBundle(f)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", p, err)
	}

	logger.Debug("artifact bundle indexed",
		slog.String("path", p),
		slog.Int("artifacts", len(entries)),
	)

	return &Store{bundle: entries, source: p}, nil
}

// Source returns the directory or bundle path the store reads from.
func (s *Store) Source() string {
	return s.source
}

// Load returns the artifact for the named contract (e.g. "Setup" reads Setup.json).
func (s *Store) Load(name string) (*ContractArtifact, error) {
	file := name + ".json"

	if s.bundle != nil {
		data, ok := s.bundle[file]
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, s.source)
		}
		return Parse(name, data)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, s.source)
		}
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return Parse(name, data)
}

func isBundle(p string) bool {
	return strings.HasSuffix(p, ".tar.zst") || strings.HasSuffix(p, ".tzst")
}

// readBundle decompresses a zstd tar stream and keeps every regular *.json entry.
// Entries are keyed by base name, so nested build layouts resolve the same way.
func readBundle(r io.Reader) (map[string][]byte, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}
		base := path.Base(header.Name)
		if !strings.HasSuffix(base, ".json") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		entries[base] = data
	}

	return entries, nil
}
