package format

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/treelog-io/treelog/pkg/model"
)

// ErrInvalidPattern is returned by NewPattern for unknown directives,
// malformed arguments or unknown timezone names. Patterns fail at
// construction time, never at render time.
var ErrInvalidPattern = errors.New("invalid format pattern")

// DefaultPattern is used by handlers configured without an explicit format.
const DefaultPattern = "%d{yyyy-MM-dd HH:mm:ss,SSS} %-5p [%c] (%t) %s%e%n"

type segment struct {
	literal string

	verb    byte
	arg     string
	width   int
	justify bool // left-justify when true

	// Pre-computed per verb at parse time.
	dateLayout string
	keepSegs   int
}

// PatternFormatter renders records through the %-directive pattern language.
type PatternFormatter struct {
	pattern     string
	segments    []segment
	loc         *time.Location
	needsCaller bool
}

// NewPattern parses pattern into a formatter. Unknown directive sequences
// are rejected here, not at render time.
func NewPattern(pattern string) (*PatternFormatter, error) {
	f := &PatternFormatter{pattern: pattern, loc: time.Local}
	i := 0
	lit := strings.Builder{}
	flush := func() {
		if lit.Len() > 0 {
			f.segments = append(f.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}
	for i < len(pattern) {
		ch := pattern[i]
		if ch != '%' {
			lit.WriteByte(ch)
			i++
			continue
		}
		if i+1 >= len(pattern) {
			return nil, fmt.Errorf("%w: trailing %% in %q", ErrInvalidPattern, pattern)
		}
		i++
		seg := segment{}
		if pattern[i] == '-' {
			seg.justify = true
			i++
		}
		for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
			seg.width = seg.width*10 + int(pattern[i]-'0')
			i++
		}
		if i >= len(pattern) {
			return nil, fmt.Errorf("%w: truncated directive in %q", ErrInvalidPattern, pattern)
		}
		seg.verb = pattern[i]
		i++
		if i < len(pattern) && pattern[i] == '{' {
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed { in %q", ErrInvalidPattern, pattern)
			}
			seg.arg = pattern[i+1 : i+end]
			i += end + 1
		}
		if seg.verb == '%' {
			lit.WriteByte('%')
			continue
		}
		if err := f.prepare(&seg); err != nil {
			return nil, err
		}
		if seg.verb == 'z' {
			// Timezone override is consumed at parse time.
			continue
		}
		flush()
		f.segments = append(f.segments, seg)
	}
	flush()
	return f, nil
}

// prepare validates one directive and pre-computes its render parameters.
func (f *PatternFormatter) prepare(seg *segment) error {
	switch seg.verb {
	case 'c':
		if seg.arg != "" {
			n, err := parseSegmentCount(seg.arg)
			if err != nil {
				return fmt.Errorf("%w: %%c{%s}", ErrInvalidPattern, seg.arg)
			}
			seg.keepSegs = n
		}
	case 'd':
		layout := seg.arg
		if layout == "" {
			layout = "yyyy-MM-dd HH:mm:ss,SSS"
		}
		seg.dateLayout = convertDateFormat(layout)
	case 'z':
		loc, err := time.LoadLocation(seg.arg)
		if err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidPattern, seg.arg)
		}
		f.loc = loc
	case 'C', 'F', 'l', 'L', 'M':
		f.needsCaller = true
	case 'p', 's', 'm', 'e', 'n', 'r', 't', 'h', 'H', 'i', 'N', 'x', 'X':
		// No render parameters.
	default:
		return fmt.Errorf("%w: unknown directive %%%c", ErrInvalidPattern, seg.verb)
	}
	return nil
}

// parseSegmentCount parses the %c precision argument: a count of trailing
// category segments to keep, with an optional trailing dot.
func parseSegmentCount(arg string) (int, error) {
	arg = strings.TrimSuffix(arg, ".")
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad segment count %q", arg)
	}
	return n, nil
}

// Format implements Formatter.
func (f *PatternFormatter) Format(rec *model.Record) []byte {
	var b strings.Builder
	for _, seg := range f.segments {
		if seg.verb == 0 {
			b.WriteString(seg.literal)
			continue
		}
		val := f.render(seg, rec)
		if seg.width > 0 && len(val) < seg.width {
			pad := strings.Repeat(" ", seg.width-len(val))
			if seg.justify {
				val += pad
			} else {
				val = pad + val
			}
		}
		b.WriteString(val)
	}
	return []byte(b.String())
}

func (f *PatternFormatter) render(seg segment, rec *model.Record) string {
	switch seg.verb {
	case 'c':
		return abbreviate(rec.Category, seg.keepSegs)
	case 'p':
		return rec.Level.String()
	case 's':
		return rec.Message
	case 'm':
		if rec.ErrText != "" {
			return rec.Message + ": " + rec.ErrText
		}
		return rec.Message
	case 'e':
		if rec.ErrText != "" {
			return ": " + rec.ErrText
		}
		return ""
	case 'd':
		return rec.Time.In(f.loc).Format(seg.dateLayout)
	case 'n':
		return "\n"
	case 'r':
		return strconv.FormatInt(rec.Time.Sub(startTime).Milliseconds(), 10)
	case 't':
		return rec.Goroutine
	case 'h':
		return model.ShortHostName()
	case 'H':
		return model.HostName
	case 'i':
		return strconv.Itoa(model.ProcessID)
	case 'N':
		return model.ProcessName
	case 'C':
		if rec.Caller != nil {
			return rec.Caller.Package
		}
	case 'M':
		if rec.Caller != nil {
			return rec.Caller.Function
		}
	case 'F':
		if rec.Caller != nil {
			return rec.Caller.File
		}
	case 'L':
		if rec.Caller != nil {
			return strconv.Itoa(rec.Caller.Line)
		}
	case 'l':
		if rec.Caller != nil {
			return rec.Caller.File + ":" + strconv.Itoa(rec.Caller.Line)
		}
	case 'x':
		return strings.Join(rec.NDC, ".")
	case 'X':
		if seg.arg != "" {
			return rec.MDC[seg.arg]
		}
		return renderAllMDC(rec.MDC)
	}
	return ""
}

// NeedsCaller implements Formatter.
func (f *PatternFormatter) NeedsCaller() bool { return f.needsCaller }

// Pattern returns the source pattern string.
func (f *PatternFormatter) Pattern() string { return f.pattern }

// abbreviate keeps the last keep dot-separated segments of category.
// keep == 0 means the full name.
func abbreviate(category string, keep int) string {
	if keep <= 0 {
		return category
	}
	idx := len(category)
	for n := 0; n < keep; n++ {
		dot := strings.LastIndexByte(category[:idx], '.')
		if dot < 0 {
			return category
		}
		idx = dot
	}
	return category[idx+1:]
}

func renderAllMDC(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
	}
	b.WriteByte('}')
	return b.String()
}

// convertDateFormat maps the documented date tokens onto a Go time layout.
// Unrecognized characters pass through as literals, matching how the
// original tokens treat punctuation.
func convertDateFormat(tokens string) string {
	replacements := []struct{ from, to string }{
		{"yyyy", "2006"},
		{"yy", "06"},
		{"MM", "01"},
		{"dd", "02"},
		{"HH", "15"},
		{"hh", "03"},
		{"mm", "04"},
		{"ss", "05"},
		{"SSS", "000"},
		{"aa", "PM"},
		{"zzz", "MST"},
		{"z", "MST"},
		{"XXX", "-07:00"},
	}
	out := tokens
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.from, r.to)
	}
	return out
}
