package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/inkpost/internal/feed"
	"github.com/alphabot-ai/inkpost/internal/view/htmlview"
)

func (e *env) listStories(c *cli.Context) error {
	sort, err := feed.ParseSort(c.String("sort"))
	if err != nil {
		return err
	}
	f, a, err := e.feed(c.Context)
	if err != nil {
		return err
	}
	f.SetSearch(c.String("search"))
	f.SetAuthor(c.String("author"))
	f.SetSort(sort)
	if err := f.Load(c.Context, c.Int("page")); err != nil {
		return errors.New(f.View().Error)
	}

	v := f.View()
	return e.out.print(v, func(w io.Writer) {
		if v.ResultLabel != "" {
			fmt.Fprintln(w, v.ResultLabel)
		}
		if v.Empty {
			fmt.Fprintln(w, v.EmptyMessage)
			return
		}
		for _, card := range v.Cards {
			fmt.Fprintf(w, "%s  %s\n", card.ID, card.Title)
			meta := []string{card.Author, card.Date}
			if card.Age != "" {
				meta = append(meta, card.Age)
			}
			if card.ImageLabel != "" {
				meta = append(meta, card.ImageLabel)
			}
			fmt.Fprintf(w, "    %s\n", strings.Join(meta, " · "))
			if card.Excerpt != "" {
				fmt.Fprintf(w, "    %s\n", card.Excerpt)
			}
		}
		if v.ShowPagination {
			fmt.Fprintf(w, "page %d/%d\n", v.Page, v.Pages)
		}
	}, func(r *htmlview.Renderer, w io.Writer) error {
		return r.Feed(w, a.View(), v)
	})
}

func (e *env) showStory(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: inkpost stories show <id>")
	}
	vc, a, err := e.viewer(c.Context)
	if err != nil {
		return err
	}
	if err := vc.Load(c.Context, id); err != nil {
		return errors.New(vc.View().Error)
	}
	if n := c.Int("image"); n > 0 {
		if err := vc.OpenImage(n - 1); err != nil {
			return err
		}
	}

	v := vc.View()
	return e.out.print(v, func(w io.Writer) {
		fmt.Fprintln(w, v.Title)
		fmt.Fprintf(w, "%s · %s\n\n", v.Author, v.Date)
		for _, p := range v.Paragraphs {
			fmt.Fprintf(w, "%s\n\n", p)
		}
		if v.ImageLabel != "" {
			fmt.Fprintln(w, v.ImageLabel)
		}
		for i, url := range v.Gallery {
			fmt.Fprintf(w, "  %d. %s\n", i+1, url)
		}
		if v.Slide != nil {
			fmt.Fprintf(w, "\n[%s] %s\n", v.Slide.Counter, v.Slide.URL)
		}
	}, func(r *htmlview.Renderer, w io.Writer) error {
		return r.Story(w, a.View(), v)
	})
}
