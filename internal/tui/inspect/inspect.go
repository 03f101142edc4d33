// Package inspect is a two-pane terminal viewer for SPL boot headers: the
// left pane lists the header fields, the right pane dumps the bytes of the
// selected one.
package inspect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"spltool/internal/core"
	"spltool/internal/image/spl"
)

// item is one field of the header as laid out on disk.
type item struct {
	name  string
	off   int
	width int
	value string
}

func items(h *spl.Header) []item {
	word := func(v uint32) string { return fmt.Sprintf("0x%08x", v) }
	ra, rb := h.ReservedA(), h.ReservedB()
	return []item{
		{"start offset", 0x000, 4, word(h.StartOffset())},
		{"backup offset", 0x004, 4, word(h.BackupOffset())},
		{"reserved", 0x008, len(ra), zeroNote(ra[:])},
		{"version", 0x284, 4, word(h.Version())},
		{"image size", 0x288, 4, fmt.Sprintf("%d", h.ImageSize())},
		{"result offset", 0x28c, 4, word(h.ResultOffset())},
		{"checksum", 0x290, 4, word(h.Checksum())},
		{"reserved", 0x294, len(rb), zeroNote(rb[:])},
	}
}

func zeroNote(b []byte) string {
	n := 0
	for _, v := range b {
		if v != 0 {
			n++
		}
	}
	if n == 0 {
		return "all zero"
	}
	return fmt.Sprintf("%d non-zero bytes", n)
}

// line renders one entry of the field list.
func (it item) line() string {
	return fmt.Sprintf("0x%03x %-14s %4d  %s", it.off, it.name, it.width, it.value)
}

func statusColor(status string) string {
	switch status {
	case core.StatusOK:
		return "green"
	case core.StatusCRCFailed:
		return "yellow"
	default:
		return "red"
	}
}

type viewer struct {
	app    *tview.Application
	grid   *tview.Grid
	header *tview.TextView
	fields *tview.TextView
	dump   *tview.TextView
	footer *tview.TextView

	report *core.Report
	raw    [spl.HeaderLen]byte
	items  []item
	index  int
}

func newViewer(r *core.Report, h *spl.Header) *viewer {
	return &viewer{
		app:    tview.NewApplication(),
		grid:   tview.NewGrid(),
		header: tview.NewTextView(),
		fields: tview.NewTextView(),
		dump:   tview.NewTextView(),
		footer: tview.NewTextView(),
		report: r,
		raw:    h.Bytes(),
		items:  items(h),
	}
}

// Run shows the header until the user quits.
func Run(r *core.Report, h *spl.Header) error {
	v := newViewer(r, h)
	v.style()
	v.layout()
	v.bindKeys()
	v.drawHeader()
	v.drawFields()
	v.drawDump()
	v.app.SetRoot(v.grid, true)
	v.app.SetFocus(v.fields)
	return v.app.Run()
}

func (v *viewer) style() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorNavy
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlue
	tview.Styles.BorderColor = tcell.ColorSkyblue
	tview.Styles.PrimaryTextColor = tcell.ColorWhite

	v.header.SetBorder(true)
	v.header.SetDynamicColors(true)
	v.header.SetTitle(" SPL header ")
	v.header.SetTitleColor(tcell.ColorSkyblue)

	v.footer.SetBorder(true)
	v.footer.SetDynamicColors(true)
	fmt.Fprint(v.footer, footerText())

	for _, tv := range []*tview.TextView{v.fields, v.dump} {
		tv.SetBorder(true)
		tv.SetTitleAlign(tview.AlignLeft)
		tv.SetDynamicColors(true)
	}
	v.fields.SetTitle(" fields ")
	v.dump.SetTitle(" bytes ")
}

func footerText() string {
	lbl := func(fn, t string) string { return fmt.Sprintf("[black:white] %s [-:-:-] [yellow]%s[-]", fn, t) }
	return strings.Join([]string{
		lbl("↑↓", "Field"),
		lbl("Home", "First"),
		lbl("End", "Last"),
		lbl("F10", "Quit"),
	}, "  ")
}

func (v *viewer) layout() {
	v.grid.SetRows(4, 0, 3).SetColumns(0, 0).SetBorders(false)
	center := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.fields, 0, 1, true).
		AddItem(v.dump, 0, 1, false)
	v.grid.AddItem(v.header, 0, 0, 1, 2, 0, 0, false)
	v.grid.AddItem(center, 1, 0, 1, 2, 0, 0, true)
	v.grid.AddItem(v.footer, 2, 0, 1, 2, 0, 0, false)
}

func (v *viewer) drawHeader() {
	v.header.Clear()
	fmt.Fprint(v.header, headerText(v.report))
}

func headerText(r *core.Report) string {
	s := fmt.Sprintf("[yellow]FILE[-]: [white]%s[-] (%d bytes)\n[yellow]STATUS[-]: [%s]%s[-]",
		tview.Escape(r.Path), r.FileSize, statusColor(r.Status), r.Status)
	if r.Detail != "" {
		s += "  " + tview.Escape(r.Detail)
	}
	return s
}

func (v *viewer) drawFields() {
	v.fields.Clear()
	for i, it := range v.items {
		if i == v.index {
			fmt.Fprintf(v.fields, "[black:teal]%s[-:-:-]\n", tview.Escape(it.line()))
		} else {
			fmt.Fprintf(v.fields, "%s\n", tview.Escape(it.line()))
		}
	}
}

func (v *viewer) drawDump() {
	v.dump.Clear()
	it := v.items[v.index]
	v.dump.SetTitle(fmt.Sprintf(" %s @ 0x%03x ", it.name, it.off))
	fmt.Fprint(v.dump, tview.Escape(dumpAt(v.raw[:], it.off, it.width)))
	v.dump.ScrollToBeginning()
}

// dumpAt is a hex dump of b[off:off+n] labelled with offsets into b.
func dumpAt(b []byte, off, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i += 16 {
		end := i + 16
		if end > n {
			end = n
		}
		chunk := b[off+i : off+end]
		fmt.Fprintf(&sb, "%04x  %s\n", off+i, hex.EncodeToString(chunk))
	}
	return sb.String()
}

func (v *viewer) setIndex(i int) {
	if i < 0 {
		i = 0
	}
	if i >= len(v.items) {
		i = len(v.items) - 1
	}
	v.index = i
	v.drawFields()
	v.drawDump()
}

func (v *viewer) bindKeys() {
	v.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			v.setIndex(v.index - 1)
			return nil
		case tcell.KeyDown:
			v.setIndex(v.index + 1)
			return nil
		case tcell.KeyHome:
			v.setIndex(0)
			return nil
		case tcell.KeyEnd:
			v.setIndex(len(v.items) - 1)
			return nil
		case tcell.KeyF10, tcell.KeyEsc:
			v.app.Stop()
			return nil
		case tcell.KeyRune:
			if ev.Rune() == 'q' {
				v.app.Stop()
				return nil
			}
		}
		return ev
	})
}
