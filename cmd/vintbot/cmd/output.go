package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ncoulthurst/VintBot/internal/route"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printItemsTable(items []domain.Item) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tPRICE\tBRAND\tSIZE\tLISTED\tTITLE\n")
	for i := range items {
		it := &items[i]
		listed := "-"
		if !it.ListedAt.IsZero() {
			listed = it.ListedAt.Format("2006-01-02 15:04")
		}
		tw.writef("%d\t%.2f %s\t%s\t%s\t%s\t%s\n",
			it.ID,
			it.Price,
			it.Currency,
			orEmpty(it.Brand),
			orEmpty(it.Size),
			listed,
			truncate(it.Title, 48),
		)
	}
	return tw.finish()
}

func printChannelsTable(entries []route.Entry) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("NAME\tWEBHOOK\tALIASES\tSUBSTRING\n")
	for i := range entries {
		e := &entries[i]
		tw.writef("%s\t%s\t%s\t%v\n",
			e.Name,
			redactWebhook(e.WebhookURL),
			strings.Join(e.Aliases, ", "),
			e.Substring,
		)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// redactWebhook hides the token segment of a webhook URL so tables can
// be shared safely.
func redactWebhook(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	if i := strings.LastIndex(u.Path, "/"); i > 0 {
		u.Path = u.Path[:i] + "/***"
	}
	return u.String()
}
