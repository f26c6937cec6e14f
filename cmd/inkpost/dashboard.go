package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/inkpost/internal/auth"
	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/dashboard"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/notify"
	"github.com/alphabot-ai/inkpost/internal/view/htmlview"
)

func (e *env) myStories(c *cli.Context) error {
	d, a, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	if err := d.LoadMyStories(c.Context, c.Int("page")); err != nil {
		return errors.New(d.View().StoriesError)
	}
	return e.printStories(d.View(), a.View())
}

func (e *env) printStories(v dashboard.View, a auth.View) error {
	return e.out.print(v, func(w io.Writer) {
		if v.StoriesEmpty {
			fmt.Fprintln(w, e.tr.Sprintf(i18n.MsgNoStories))
			return
		}
		for _, row := range v.Stories {
			fmt.Fprintf(w, "%s  %s\n", row.ID, row.Title)
			meta := []string{row.Date}
			if row.Status != "" {
				meta = append(meta, row.Status)
			}
			if row.ImageLabel != "" {
				meta = append(meta, row.ImageLabel)
			}
			fmt.Fprintf(w, "    %s\n", strings.Join(meta, " · "))
		}
		if p := v.StoriesPage; p.Pages > 1 {
			fmt.Fprintf(w, "page %d/%d\n", p.Page, p.Pages)
		}
	}, func(r *htmlview.Renderer, w io.Writer) error {
		return r.Dashboard(w, a, v)
	})
}

func (e *env) createStory(c *cli.Context) error {
	d, a, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	content, err := storyContent(c)
	if err != nil {
		return err
	}
	d.NewStory()
	if err := e.attach(c, d, c.StringSlice("image")); err != nil {
		return err
	}
	if err := d.Submit(c.Context, c.String("title"), content); err != nil {
		return err
	}
	return e.printStories(d.View(), a.View())
}

func (e *env) updateStory(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: inkpost update <id>")
	}
	d, a, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	if err := d.EditStory(c.Context, id); err != nil {
		return err
	}

	remove := c.IntSlice("remove-image")
	sort.Sort(sort.Reverse(sort.IntSlice(remove)))
	for _, n := range remove {
		if err := d.RemoveImage(n - 1); err != nil {
			return err
		}
	}
	if err := e.attach(c, d, c.StringSlice("image")); err != nil {
		return err
	}

	editor := d.View().Editor
	title, content := editor.Title, editor.Content
	if c.IsSet("title") {
		title = c.String("title")
	}
	if c.IsSet("content") || c.IsSet("content-file") {
		if content, err = storyContent(c); err != nil {
			return err
		}
	}
	if err := d.Submit(c.Context, title, content); err != nil {
		return err
	}
	return e.printStories(d.View(), a.View())
}

func (e *env) deleteStory(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: inkpost delete <id>")
	}
	d, _, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	return d.DeleteStory(c.Context, id)
}

// upload sends files to the image library in batches that fit the editor.
func (e *env) upload(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("usage: inkpost upload <file>...")
	}
	d, _, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	files, err := openImages(paths)
	if err != nil {
		return err
	}

	var uploaded []dashboard.ImageRow
	for start := 0; start < len(files); start += dashboard.MaxImages {
		d.NewStory()
		batch := files[start:min(start+dashboard.MaxImages, len(files))]
		if _, err := d.AddImages(c.Context, batch, e.progress); err != nil {
			if !errors.Is(err, dashboard.ErrNoImages) {
				return err
			}
		}
		uploaded = append(uploaded, d.View().Editor.Images...)
	}
	d.NewStory()

	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		sizes[f.Name] = f.Size
	}
	return e.out.print(uploaded, func(w io.Writer) {
		for _, img := range uploaded {
			fmt.Fprintf(w, "%s  %s  %s\n", img.PublicID, img.Name, humanize.Bytes(uint64(sizes[img.Name])))
			fmt.Fprintf(w, "    %s\n", img.URL)
		}
	}, nil)
}

func (e *env) images(c *cli.Context) error {
	d, _, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	if err := d.LoadMyImages(c.Context, c.Int("page")); err != nil {
		return errors.New(d.View().ImagesError)
	}
	v := d.View()
	return e.out.print(struct {
		Images     []dashboard.ImageRow `json:"images"`
		Pagination model.Pagination     `json:"pagination"`
	}{v.Images, v.ImagesPagination}, func(w io.Writer) {
		if len(v.Images) == 0 {
			fmt.Fprintln(w, e.tr.Sprintf(i18n.MsgNoImages))
			return
		}
		for _, img := range v.Images {
			fmt.Fprintf(w, "%s  %s\n    %s\n", img.PublicID, img.Name, img.URL)
		}
		if p := v.ImagesPagination; p.Pages > 1 {
			fmt.Fprintf(w, "page %d/%d\n", p.Page, p.Pages)
		}
	}, nil)
}

func (e *env) deleteImage(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: inkpost delete-image <public-id>")
	}
	d, _, err := e.dashboard(c.Context)
	if err != nil {
		return err
	}
	return d.DeleteImage(c.Context, id)
}

func (e *env) attach(c *cli.Context, d *dashboard.Controller, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	files, err := openImages(paths)
	if err != nil {
		return err
	}
	_, err = d.AddImages(c.Context, files, e.progress)
	return err
}

func (e *env) progress(current, total int, name string) {
	e.notifier.Notify(e.tr.Sprintf(i18n.MsgUploading, current, total)+" "+name, notify.Info)
}

func openImages(paths []string) ([]client.ImageFile, error) {
	files := make([]client.ImageFile, 0, len(paths))
	for _, p := range paths {
		f, err := client.OpenImageFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// storyContent reads --content, or --content-file where "-" is stdin.
func storyContent(c *cli.Context) (string, error) {
	path := c.String("content-file")
	if path == "" {
		return c.String("content"), nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}
