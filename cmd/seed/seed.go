package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dustin/go-humanize"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/session"
)

type options struct {
	BaseURL       string
	Users         int
	Stories       int
	Seed          int64
	Admin         string
	AdminPassword string
	Ban           int
}

type summary struct {
	Users   []string
	Stories []string
	Images  int
	Bytes   int64
	Banned  []string
	Flagged int
}

func (s summary) print(w io.Writer, baseURL string) {
	fmt.Fprintln(w, "=== Seed Complete ===")
	fmt.Fprintf(w, "Users:    %d\n", len(s.Users))
	fmt.Fprintf(w, "Stories:  %d\n", len(s.Stories))
	fmt.Fprintf(w, "Images:   %d (%s)\n", s.Images, humanize.Bytes(uint64(s.Bytes)))
	if len(s.Banned) > 0 {
		fmt.Fprintf(w, "Banned:   %s\n", strings.Join(s.Banned, ", "))
	}
	if s.Flagged > 0 {
		fmt.Fprintf(w, "Flagged:  %d\n", s.Flagged)
	}
	fmt.Fprintln(w, "API:", baseURL)
}

type author struct {
	name string
	api  *client.Client
}

func newClient(ctx context.Context, baseURL string, logger *slog.Logger) (*client.Client, error) {
	st, err := session.Open(ctx, session.NewMemory())
	if err != nil {
		return nil, err
	}
	return client.New(baseURL, st, client.WithLogger(logger)), nil
}

// waitHealthy polls the health endpoint until the API answers.
func waitHealthy(ctx context.Context, api *client.Client) error {
	var err error
	for range 50 {
		if _, err = api.HealthCheck(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("api not reachable: %w", err)
}

func seed(ctx context.Context, opts options, logger *slog.Logger) (summary, error) {
	var sum summary
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(opts.Seed)

	probe, err := newClient(ctx, opts.BaseURL, logger)
	if err != nil {
		return sum, err
	}
	if err := waitHealthy(ctx, probe); err != nil {
		return sum, err
	}
	logger.Info("seeding", slog.String("url", opts.BaseURL), slog.Int64("seed", opts.Seed))

	var authors []author
	for range opts.Users {
		name := fmt.Sprintf("%s%d", strings.ToLower(faker.Username()), faker.Number(100, 999))
		password := "Ink" + faker.Password(true, true, true, false, false, 10) + "7a"
		api, err := newClient(ctx, opts.BaseURL, logger)
		if err != nil {
			return sum, err
		}
		if _, err := api.Register(ctx, name, password); err != nil {
			return sum, fmt.Errorf("register %s: %w", name, err)
		}
		if _, err := api.Login(ctx, name, password); err != nil {
			return sum, fmt.Errorf("login %s: %w", name, err)
		}
		logger.Info("registered", slog.String("username", name))
		authors = append(authors, author{name: name, api: api})
		sum.Users = append(sum.Users, name)
	}
	if len(authors) == 0 {
		return sum, nil
	}

	for range opts.Stories {
		a := authors[faker.Number(0, len(authors)-1)]
		var urls []string
		if faker.Number(1, 10) <= 4 {
			for range faker.Number(1, 3) {
				data := faker.ImagePng(64, 64)
				img, err := a.api.UploadImage(ctx, client.NewImageFile(faker.Word()+".png", data))
				if err != nil {
					logger.Warn("image upload failed", slog.String("username", a.name), slog.String("error", err.Error()))
					continue
				}
				urls = append(urls, img.URL)
				sum.Images++
				sum.Bytes += int64(len(data))
			}
		}
		title := strings.TrimSuffix(faker.Sentence(faker.Number(3, 8)), ".")
		content := faker.Paragraph(faker.Number(2, 5), 4, 12, "\n\n")
		story, err := a.api.CreateStory(ctx, model.NewStoryInput(title, content, urls))
		if err != nil {
			return sum, fmt.Errorf("create story for %s: %w", a.name, err)
		}
		logger.Info("published", slog.String("id", story.ID), slog.String("username", a.name))
		sum.Stories = append(sum.Stories, story.ID)
	}

	if opts.Ban > 0 && opts.AdminPassword != "" {
		admin, err := newClient(ctx, opts.BaseURL, logger)
		if err != nil {
			return sum, err
		}
		if _, err := admin.Login(ctx, opts.Admin, opts.AdminPassword); err != nil {
			return sum, fmt.Errorf("admin login: %w", err)
		}
		for _, a := range authors[:min(opts.Ban, len(authors))] {
			if err := admin.BanUser(ctx, a.name, faker.RandomString([]string{"spam", "off-topic", "abuse"})); err != nil {
				return sum, fmt.Errorf("ban %s: %w", a.name, err)
			}
			sum.Banned = append(sum.Banned, a.name)
		}
	}
	return sum, nil
}
