package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Reporter receives plug outcomes for presentation
type Reporter interface {
	ShowPowerStatus(address string, on bool)
	ShowMessage(msg string)
	ShowError(address string, code string, err error)
}

// Console renders outcomes as text lines and keeps them in a History.
// Colors are used only when out is a terminal.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	history *History
	now     func() time.Time

	onColor   *color.Color
	offColor  *color.Color
	infoColor *color.Color
	errColor  *color.Color
}

// NewConsole creates a console renderer writing to out.
// historySize 0 uses DefaultHistorySize.
func NewConsole(out io.Writer, historySize uint32) *Console {
	if out == nil {
		out = os.Stdout
	}

	c := &Console{
		out:       out,
		history:   NewHistory(historySize),
		now:       time.Now,
		onColor:   color.New(color.FgGreen, color.Bold),
		offColor:  color.New(color.FgYellow),
		infoColor: color.New(color.FgCyan),
		errColor:  color.New(color.FgRed, color.Bold),
	}

	if !isTerminal(out) {
		for _, col := range []*color.Color{c.onColor, c.offColor, c.infoColor, c.errColor} {
			col.DisableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// History returns the in-memory record history
func (c *Console) History() *History {
	return c.history
}

func (c *Console) ShowPowerStatus(address string, on bool) {
	state, col := "OFF", c.offColor
	if on {
		state, col = "ON", c.onColor
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s power %s\n", addressTag(address), col.Sprint(state))
	c.record(Record{Kind: KindPower, Address: address, Text: strings.ToLower(state)})
}

func (c *Console) ShowMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.infoColor.Sprint(msg))
	c.record(Record{Kind: KindMessage, Text: msg})
}

func (c *Console) ShowError(address string, code string, err error) {
	text := code
	if err != nil {
		text = fmt.Sprintf("%s: %v", code, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", addressTag(address), c.errColor.Sprint(text))
	c.record(Record{Kind: KindError, Address: address, Code: code, Text: text})
}

func (c *Console) record(rec Record) {
	rec.Time = c.now()
	// Overflow is handled by the ring; enqueue errors only mean the record is lost.
	_ = c.history.Add(rec)
}

func addressTag(address string) string {
	if address == "" {
		return "[-]"
	}
	return "[" + address + "]"
}
