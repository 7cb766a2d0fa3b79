// Package envfile loads provider keys and engine switches from a dotenv file.
package envfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PathEnv points at an explicit .env file, skipping the search.
const PathEnv = "PROPERTYSANTA_ENV_PATH"

const fileName = ".env"

type Result struct {
	Path    string
	Loaded  bool
	Keys    int
	Kept    int
	Skipped int
	Err     error
}

// Entry is one KEY=VALUE assignment.
type Entry struct {
	Key   string
	Value string
	Line  int
}

// Load applies the nearest .env file at or above the working directory, or
// failing that the first one found in fallbackDirs. Variables already set in
// the environment win.
func Load(fallbackDirs ...string) Result {
	if override := strings.TrimSpace(os.Getenv(PathEnv)); override != "" {
		return LoadPath(override)
	}
	if cwd, err := os.Getwd(); err == nil {
		if path := findUpwards(cwd); path != "" {
			return LoadPath(path)
		}
	}
	for _, dir := range fallbackDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return LoadPath(candidate)
		}
	}
	return Result{}
}

func LoadPath(path string) Result {
	res := Result{Path: path}
	file, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer file.Close()
	res.Loaded = true
	entries, skipped, err := Parse(file)
	res.Skipped = skipped
	if err != nil {
		res.Err = err
		return res
	}
	for _, entry := range entries {
		if _, exists := os.LookupEnv(entry.Key); exists {
			res.Kept++
			continue
		}
		if err := os.Setenv(entry.Key, entry.Value); err != nil {
			res.Err = err
			return res
		}
		res.Keys++
	}
	return res
}

// Parse reads dotenv assignments. Blank lines, comments and an optional
// "export " prefix are ignored; lines without a key are counted as skipped.
func Parse(r io.Reader) ([]Entry, int, error) {
	var (
		entries []Entry
		skipped int
		lineNo  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, raw, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			skipped++
			continue
		}
		entries = append(entries, Entry{Key: key, Value: parseValue(strings.TrimSpace(raw)), Line: lineNo})
	}
	return entries, skipped, scanner.Err()
}

func parseValue(raw string) string {
	if len(raw) >= 2 {
		switch first, last := raw[0], raw[len(raw)-1]; {
		case first == '\'' && last == '\'':
			return raw[1 : len(raw)-1]
		case first == '"' && last == '"':
			return unescape(raw[1 : len(raw)-1])
		}
	}
	if i := strings.Index(raw, " #"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	return raw
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return escapes.Replace(s)
}

func findUpwards(dir string) string {
	for {
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
