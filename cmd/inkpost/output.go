package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/view/htmlview"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatHTML = "html"
)

type printer struct {
	w      io.Writer
	format string
	tr     *i18n.Translator
	html   *htmlview.Renderer
}

func newPrinter(w io.Writer, format string, tr *i18n.Translator) (*printer, error) {
	p := &printer{w: w, format: format, tr: tr}
	switch format {
	case formatText, formatJSON, formatYAML:
	case formatHTML:
		r, err := htmlview.New(tr.Tag().String())
		if err != nil {
			return nil, err
		}
		p.html = r
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return p, nil
}

// print writes v in the structured formats, or calls text. page renders the
// html format and may be nil for commands without a page.
func (p *printer) print(v any, text func(w io.Writer), page func(r *htmlview.Renderer, w io.Writer) error) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = p.w.Write(data)
		return err
	case formatHTML:
		if page == nil {
			return fmt.Errorf("html output is not available for this command")
		}
		return page(p.html, p.w)
	default:
		text(p.w)
		return nil
	}
}
