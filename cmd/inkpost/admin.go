package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alphabot-ai/inkpost/internal/admin"
	"github.com/alphabot-ai/inkpost/internal/auth"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/view/htmlview"
)

func adminPage(a *auth.Controller, v admin.View) func(*htmlview.Renderer, io.Writer) error {
	return func(r *htmlview.Renderer, w io.Writer) error {
		return r.Admin(w, a.View(), v)
	}
}

func (e *env) adminStats(c *cli.Context) error {
	ctrl, a, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	if err := ctrl.LoadStats(c.Context); err != nil {
		return errors.New(ctrl.View().StatsError)
	}
	v := ctrl.View()
	return e.out.print(v.Stats, func(w io.Writer) {
		fmt.Fprintf(w, "stories  %d (%d flagged)\n", v.Stats.TotalStories, v.Stats.FlaggedStories)
		fmt.Fprintf(w, "users    %d (%d banned)\n", v.Stats.TotalUsers, v.Stats.BannedUsers)
	}, adminPage(a, v))
}

func (e *env) adminStories(c *cli.Context) error {
	ctrl, a, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	if err := ctrl.LoadStories(c.Context, c.Int("page"), c.String("status")); err != nil {
		return errors.New(ctrl.View().StoriesError)
	}
	v := ctrl.View()
	return e.out.print(struct {
		Stories    []admin.StoryRow `json:"stories"`
		Pagination model.Pagination `json:"pagination"`
	}{v.Stories, v.StoriesPagination}, func(w io.Writer) {
		printStoryRows(w, v.Stories)
		if p := v.StoriesPagination; p.Pages > 1 {
			fmt.Fprintf(w, "page %d/%d\n", p.Page, p.Pages)
		}
	}, adminPage(a, v))
}

func (e *env) adminUsers(c *cli.Context) error {
	ctrl, a, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	if err := ctrl.LoadUsers(c.Context, c.Int("page")); err != nil {
		return errors.New(ctrl.View().UsersError)
	}
	v := ctrl.View()
	return e.out.print(struct {
		Users      []admin.UserRow  `json:"users"`
		Pagination model.Pagination `json:"pagination"`
	}{v.Users, v.UsersPagination}, func(w io.Writer) {
		printUserRows(w, v.Users)
		if p := v.UsersPagination; p.Pages > 1 {
			fmt.Fprintf(w, "page %d/%d\n", p.Page, p.Pages)
		}
	}, adminPage(a, v))
}

// adminModeration loads flagged stories and users side by side.
func (e *env) adminModeration(c *cli.Context) error {
	ctrl, a, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error { return ctrl.LoadStories(c.Context, 1, model.StatusFlagged) })
	g.Go(func() error { return ctrl.LoadUsers(c.Context, 1) })
	if err := g.Wait(); err != nil {
		if v := ctrl.View(); v.StoriesError != "" {
			return errors.New(v.StoriesError)
		}
		return errors.New(ctrl.View().UsersError)
	}
	v := ctrl.View()
	return e.out.print(v.Moderation, func(w io.Writer) {
		if len(v.Moderation.Flagged) == 0 {
			fmt.Fprintln(w, v.Moderation.FlaggedEmpty)
		}
		printStoryRows(w, v.Moderation.Flagged)
		fmt.Fprintln(w)
		if len(v.Moderation.Banned) == 0 {
			fmt.Fprintln(w, v.Moderation.BannedEmpty)
		}
		printUserRows(w, v.Moderation.Banned)
	}, adminPage(a, v))
}

func (e *env) adminDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("usage: inkpost admin delete <id>")
	}
	ctrl, _, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	return ctrl.DeleteStory(c.Context, id)
}

func (e *env) adminBan(c *cli.Context) error {
	username := c.Args().First()
	if username == "" {
		return errors.New("usage: inkpost admin ban --reason <text> <username>")
	}
	ctrl, _, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	return ctrl.BanUser(c.Context, username, c.String("reason"))
}

func (e *env) adminUnban(c *cli.Context) error {
	username := c.Args().First()
	if username == "" {
		return errors.New("usage: inkpost admin unban <username>")
	}
	ctrl, _, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	return ctrl.UnbanUser(c.Context, username)
}

func (e *env) adminRole(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: inkpost admin role <username> <user|admin>")
	}
	ctrl, _, err := e.admin(c.Context)
	if err != nil {
		return err
	}
	return ctrl.ChangeUserRole(c.Context, c.Args().Get(0), c.Args().Get(1))
}

func printStoryRows(w io.Writer, rows []admin.StoryRow) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s  %-8s  %s\n", row.ID, row.StatusLabel, row.Title)
		fmt.Fprintf(w, "    %s · %s · %s\n", row.Author, row.Date, row.Excerpt)
	}
}

func printUserRows(w io.Writer, rows []admin.UserRow) {
	for _, row := range rows {
		line := fmt.Sprintf("%-16s  %-14s  %s", row.Username, row.RoleLabel, row.StatusLabel)
		if row.LastLogin != "" {
			line += "  " + row.LastLogin
		}
		fmt.Fprintln(w, line)
	}
}
