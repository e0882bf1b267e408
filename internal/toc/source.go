package toc

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	mdxImportLine = regexp.MustCompile(`^\s*import\s+`)
	mdxExportLine = regexp.MustCompile(`^\s*export\s+(const|let|var|default)\s+`)
	// an import is complete once it names its module
	importFrom = regexp.MustCompile(`(\bfrom\s*|^\s*import\s*)['"][^'"]*['"]`)
)

// FrontMatter is the subset of YAML front matter we care about.
type FrontMatter struct {
	Title       string
	Description string
}

// Normalize strips a UTF-8 BOM, YAML front matter and MDX import/export
// lines, returning the markdown body and whatever front matter was found.
func Normalize(raw []byte) ([]byte, FrontMatter) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	body, fm := stripFrontMatter(raw)
	return stripMDX(body), fm
}

func stripFrontMatter(content []byte) ([]byte, FrontMatter) {
	var fm FrontMatter
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return content, fm
	}
	start := bytes.IndexByte(content, '\n') + 1

	end, skip := bytes.Index(content[start:], []byte("\n---\n")), 5
	if end == -1 {
		end, skip = bytes.Index(content[start:], []byte("\n---\r\n")), 6
	}
	if end == -1 {
		// unterminated front matter, treat the whole thing as body
		return content, fm
	}

	for _, line := range bytes.Split(content[start:start+end], []byte("\n")) {
		line = bytes.TrimSpace(line)
		if v, ok := bytes.CutPrefix(line, []byte("title:")); ok {
			fm.Title = unquote(v)
		} else if v, ok := bytes.CutPrefix(line, []byte("description:")); ok {
			fm.Description = unquote(v)
		}
	}
	return content[start+end+skip:], fm
}

func unquote(v []byte) string {
	return strings.Trim(strings.TrimSpace(string(v)), `"'`)
}

// stripMDX drops top level import/export statements, including ones that
// span several lines. Fenced and indented code is left alone so code
// samples that import things still render.
func stripMDX(content []byte) []byte {
	lines := bytes.Split(content, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	var (
		inFence, inIndented bool
		prevBlank           = true
		stmt                *esmStatement
	)
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		blank := len(trimmed) == 0

		if stmt != nil {
			// a blank line always ends an ESM block
			if !blank && !stmt.add(line) {
				stmt = nil
				prevBlank = false
				continue
			}
			if !blank {
				continue
			}
			stmt = nil
		}

		switch {
		case inFence:
			if isFence(trimmed) {
				inFence = false
			}
		case !blank && isIndentedCode(line) && (prevBlank || inIndented):
			inIndented = true
		case isFence(trimmed):
			inFence, inIndented = true, false
		case !blank && (mdxImportLine.Match(line) || mdxExportLine.Match(line)):
			inIndented = false
			s := &esmStatement{isImport: mdxImportLine.Match(line)}
			if s.add(line) {
				stmt = s
			}
			prevBlank = false
			continue
		case !blank:
			inIndented = false
		}
		out = append(out, line)
		prevBlank = blank
	}
	return bytes.Join(out, []byte("\n"))
}

func isFence(trimmed []byte) bool {
	return bytes.HasPrefix(trimmed, []byte("```")) || bytes.HasPrefix(trimmed, []byte("~~~"))
}

func isIndentedCode(line []byte) bool {
	return bytes.HasPrefix(line, []byte("    ")) || bytes.HasPrefix(line, []byte("\t"))
}

// esmStatement tracks bracket depth across the lines of one import or
// export statement.
type esmStatement struct {
	isImport bool
	depth    int
	text     []byte
}

// add consumes line and reports whether the statement continues past it.
func (s *esmStatement) add(line []byte) bool {
	s.text = append(append(s.text, line...), '\n')
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '{' || c == '(' || c == '[':
			s.depth++
		case c == '}' || c == ')' || c == ']':
			s.depth--
		}
	}
	if s.depth > 0 {
		return true
	}
	if s.isImport {
		return !importFrom.Match(s.text)
	}
	return false
}
