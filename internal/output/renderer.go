package output

import (
	"io"
	"sort"

	"github.com/nethalo/utf8mb4-convert/internal/convert"
	"github.com/nethalo/utf8mb4-convert/internal/mysql"
	"github.com/nethalo/utf8mb4-convert/internal/parser"
	"github.com/nethalo/utf8mb4-convert/internal/topology"
)

// Summary is everything the end-of-run report shows.
type Summary struct {
	Addr   string
	Server *mysql.ServerInfo // nil when preflight did not run
	// Topology is only detected for --make-it-so runs.
	Topology *topology.Info
	Report   *convert.Report
	Err      error
}

// Renderer defines the output interface.
type Renderer interface {
	RenderSummary(s Summary)
}

// NewRenderer creates a renderer for the given format. "none" and unknown
// formats other than the ones below fall back to text.
func NewRenderer(format string, w io.Writer) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w}
	case "markdown":
		return &MarkdownRenderer{w: w}
	case "plain":
		return &PlainRenderer{w: w}
	case "none":
		return nopRenderer{}
	default:
		return &TextRenderer{w: w}
	}
}

type nopRenderer struct{}

func (nopRenderer) RenderSummary(Summary) {}

type opCount struct {
	Op    parser.DDLOperation
	Count int
}

// sortedOps returns the operation counts in a stable order.
func sortedOps(ops map[parser.DDLOperation]int) []opCount {
	out := make([]opCount, 0, len(ops))
	for op, n := range ops {
		out = append(out, opCount{op, n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

func mode(r *convert.Report) string {
	if r.Committed {
		return "make-it-so"
	}
	return "dry-run"
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
