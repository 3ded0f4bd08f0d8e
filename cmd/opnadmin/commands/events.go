package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime/types"
	"github.com/urfave/cli/v3"

	"github.com/penaku/opn-admin/internal/apiclient"
	"github.com/penaku/opn-admin/internal/app"
	"github.com/penaku/opn-admin/internal/dashboard"
)

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
		&cli.IntFlag{Name: "limit", Value: dashboard.DefaultPageSize, Usage: "page size"},
	}
}

func eventFormFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "date", Usage: "event date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "time", Usage: "event time (HH:MM)"},
		&cli.StringFlag{Name: "location"},
		&cli.StringFlag{Name: "status", Value: dashboard.EventStatusUpcoming, Usage: "'akan datang' or selesai"},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "manage events",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: pageFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					page, err := a.Dashboard().Events.List(ctx, cmd.Int("page"), cmd.Int("limit"))
					if err != nil {
						return err
					}
					return printJSON(cmd, page)
				}),
			},
			{
				Name: "upcoming",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					page, err := a.Dashboard().Events.Search(ctx, dashboard.EventSearch{
						Status: dashboard.EventStatusUpcoming,
						Limit:  100,
					})
					if err != nil {
						return err
					}
					return printJSON(cmd, dashboard.Upcoming(page.Data))
				}),
			},
			{
				Name: "search",
				Flags: append(pageFlags(),
					&cli.StringFlag{Name: "keyword"},
					&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "time"},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "start-date", Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "end-date", Usage: "YYYY-MM-DD"},
				),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					s := dashboard.EventSearch{
						Keyword: cmd.String("keyword"),
						Time:    cmd.String("time"),
						Status:  cmd.String("status"),
						Page:    cmd.Int("page"),
						Limit:   cmd.Int("limit"),
					}
					var err error
					if s.Date, err = optionalDate(cmd, "date"); err != nil {
						return err
					}
					if s.StartDate, err = optionalDate(cmd, "start-date"); err != nil {
						return err
					}
					if s.EndDate, err = optionalDate(cmd, "end-date"); err != nil {
						return err
					}

					page, err := a.Dashboard().Events.Search(ctx, s)
					if err != nil {
						return err
					}
					return printJSON(cmd, page)
				}),
			},
			{
				Name:      "get",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					event, err := a.Dashboard().Events.Get(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd, event)
				}),
			},
			{
				Name:  "create",
				Flags: eventFormFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					date, err := optionalDate(cmd, "date")
					if err != nil {
						return err
					}
					form := dashboard.EventFormData{
						Title:       cmd.String("title"),
						Description: cmd.String("description"),
						Time:        cmd.String("time"),
						Location:    cmd.String("location"),
						Status:      cmd.String("status"),
					}
					if date != nil {
						form.Date = *date
					}

					event, err := a.Dashboard().Events.Create(ctx, form)
					if err != nil {
						return err
					}
					return printJSON(cmd, event)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     eventFormFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					var patch dashboard.EventPatch
					patch.Title = optionalString(cmd, "title")
					patch.Description = optionalString(cmd, "description")
					patch.Time = optionalString(cmd, "time")
					patch.Location = optionalString(cmd, "location")
					patch.Status = optionalString(cmd, "status")
					if patch.Date, err = optionalDate(cmd, "date"); err != nil {
						return err
					}

					event, err := a.Dashboard().Events.Update(ctx, id, patch)
					if err != nil {
						return err
					}
					return printJSON(cmd, event)
				}),
			},
			{
				Name:      "minutes",
				Usage:     "replace an event's minutes with the contents of a file (- for stdin)",
				ArgsUsage: "<id> <file>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					text, err := readInput(cmd.Args().Get(1))
					if err != nil {
						return err
					}
					event, err := a.Dashboard().Events.UpdateMinutes(ctx, id, text)
					if err != nil {
						return err
					}
					return printJSON(cmd, event)
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					if err := a.Dashboard().Events.Delete(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "Deleted event %d.\n", id)
					return nil
				}),
			},
			{
				Name:      "upload",
				Usage:     "upload photos to an event",
				ArgsUsage: "<id> <photo>...",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					files, closeFiles, err := openFiles(cmd.Args().Slice()[1:])
					if err != nil {
						return err
					}
					defer closeFiles()

					photos, err := a.Dashboard().Events.UploadPhotos(ctx, id, files)
					if err != nil {
						return err
					}
					return printJSON(cmd, photos)
				}),
			},
		},
	}
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func idArg(cmd *cli.Command, i int) (int, error) {
	raw := cmd.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing id argument")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}

// optionalString is nil unless the flag was given.
func optionalString(cmd *cli.Command, name string) *string {
	if !cmd.IsSet(name) {
		return nil
	}
	v := cmd.String(name)
	return &v
}

// optionalDate parses a YYYY-MM-DD flag; nil unless the flag was given.
func optionalDate(cmd *cli.Command, name string) (*types.Date, error) {
	if !cmd.IsSet(name) {
		return nil, nil
	}
	t, err := time.Parse(types.DateFormat, cmd.String(name))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &types.Date{Time: t}, nil
}

func readInput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("missing file argument")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

// openFiles opens paths for upload. The returned func closes them all.
func openFiles(paths []string) ([]apiclient.File, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	files := make([]apiclient.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		files = append(files, apiclient.File{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
			Content:     f,
		})
	}
	return files, closeAll, nil
}
