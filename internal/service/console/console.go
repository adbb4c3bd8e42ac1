package console

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/google/uuid"

	"liuproxy_checker/proxypool/model"
)

type row struct {
	proxy  model.ProxyDescriptor
	result *model.ValidationResult
}

// Display 是终端版的结果表。每条结果到达时打印一行进度，Render 输出完整表格。
type Display struct {
	mu       sync.Mutex
	progress io.Writer
	order    []string
	rows     map[string]*row
}

var _ model.Display = (*Display)(nil)

// New creates a console display. progress may be nil to suppress per-result lines.
func New(progress io.Writer) *Display {
	return &Display{
		progress: progress,
		rows:     make(map[string]*row),
	}
}

func (d *Display) InsertRow(p model.ProxyDescriptor) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.rows[id] = &row{proxy: p}
	d.order = append(d.order, id)
	return id
}

func (d *Display) UpdateRow(rowID string, r model.ValidationResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rw, ok := d.rows[rowID]
	if !ok {
		return
	}
	result := r
	rw.result = &result

	if d.progress != nil {
		fmt.Fprintf(d.progress, "[%d/%d] %s %s\n", d.doneLocked(), len(d.order), rw.proxy, statusText(rw.result))
	}
}

func (d *Display) DeleteRow(rowID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rows[rowID]; !ok {
		return
	}
	delete(d.rows, rowID)
	for i, id := range d.order {
		if id == rowID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Pending returns how many rows still have no result.
func (d *Display) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order) - d.doneLocked()
}

func (d *Display) doneLocked() int {
	n := 0
	for _, id := range d.order {
		if d.rows[id].result != nil {
			n++
		}
	}
	return n
}

// Render writes the table in insertion order.
func (d *Display) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IP\tPORT\tTYPE\tEGRESS IP\tCOUNTRY\tCITY\tISP\tLATENCY(ms)\tSTATUS")
	for _, id := range d.order {
		rw := d.rows[id]
		r := rw.result
		if r == nil {
			fmt.Fprintf(tw, "%s\t%d\t%s\t\t\t\t\t\ttesting\n", rw.proxy.Host, rw.proxy.Port, rw.proxy.Kind)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rw.proxy.Host, strconv.Itoa(rw.proxy.Port), rw.proxy.Kind,
			dash(r.EgressIP), dash(r.Country), dash(r.City), dash(r.ISP),
			r.Latency.String(), statusText(r))
	}
	return tw.Flush()
}

func statusText(r *model.ValidationResult) string {
	if r.Succeeded() {
		return "ok"
	}
	if r.ErrorMessage == "" {
		return "failed"
	}
	return "failed: " + r.ErrorMessage
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
