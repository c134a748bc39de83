package corpus

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrCorpusDirInvalid = errors.New("corpus directory is invalid")
var ErrMalformedJSON = errors.New("malformed json document")

// Entry is a single corpus file discovered by List. Key is the
// slash-separated path relative to the corpus root and doubles as the
// document key inside an index.
type Entry struct {
	Key  string
	Path string
}

// List walks root recursively and collects files whose name ends with ext.
// An empty ext selects every file.
func List(root, ext string) ([]Entry, error) {
	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrCorpusDirInvalid, "%s does not exist", root)
		}
		return nil, errors.Wrapf(err, "could not stat corpus directory %s", root)
	}

	if !fi.IsDir() {
		return nil, errors.Wrapf(ErrCorpusDirInvalid, "%s is not a directory", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "could not walk %s", path)
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Wrapf(err, "could not resolve %s against corpus root %s", path, root)
		}

		entries = append(entries, Entry{Key: filepath.ToSlash(rel), Path: path})
		return nil
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Load reads one document from disk and returns its raw text along with the
// file size in bytes. Files ending in .json are not indexed verbatim: the
// text is assembled from the values found at jsonPaths instead. Paths that
// resolve to nothing contribute nothing, which may legitimately produce an
// empty document.
func Load(path string, jsonPaths []string) (string, int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "could not read document %s", path)
	}

	if strings.HasSuffix(path, ".json") && len(jsonPaths) > 0 {
		text, err := ExtractJSON(b, jsonPaths)
		if err != nil {
			return "", 0, errors.Wrapf(err, "document %s", path)
		}
		return text, int64(len(b)), nil
	}

	return string(b), int64(len(b)), nil
}

// ReadAll drains r the way Load reads a file, for documents that arrive as
// streams rather than corpus paths.
func ReadAll(r io.Reader) (string, int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", 0, errors.Wrap(err, "could not read document stream")
	}
	return string(b), int64(len(b)), nil
}

// ExtractJSON pulls the values at paths out of a JSON document and joins
// them with single spaces. Arrays contribute every element.
func ExtractJSON(b []byte, paths []string) (string, error) {
	if !gjson.ValidBytes(b) {
		return "", ErrMalformedJSON
	}

	var sb strings.Builder
	for _, p := range paths {
		res := gjson.GetBytes(b, p)
		if !res.Exists() {
			continue
		}

		if res.IsArray() {
			res.ForEach(func(_, v gjson.Result) bool {
				appendPiece(&sb, v.String())
				return true
			})
			continue
		}

		appendPiece(&sb, res.String())
	}

	return sb.String(), nil
}

func appendPiece(sb *strings.Builder, piece string) {
	if piece == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(piece)
}

// Normalize flattens a document into the canonical form shingles are cut
// from: lowercase, line endings unified, whitespace runs collapsed to a
// single space. With keepNewlines unset (the default) newlines collapse
// like any other whitespace; with it set, line boundaries survive as single
// \n characters and blank lines are dropped.
func Normalize(text string, keepNewlines bool) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if !keepNewlines {
		return strings.Join(strings.Fields(text), " ")
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}
