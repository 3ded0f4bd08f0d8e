package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/penaku/opn-admin/internal/app"
	"github.com/penaku/opn-admin/internal/dashboard"
)

func attendanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "attendance",
		Usage: "manage event attendance",
		Commands: []*cli.Command{
			{
				Name:      "list",
				ArgsUsage: "<event-id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					records, err := a.Dashboard().Attendance.List(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd, records)
				}),
			},
			{
				Name:      "roster",
				Usage:     "attendance with every member defaulted to present when none is recorded",
				ArgsUsage: "<event-id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					members, err := a.Dashboard().Members.List(ctx)
					if err != nil {
						return err
					}
					roster, err := a.Dashboard().Attendance.Roster(ctx, id, members)
					if err != nil {
						return err
					}
					return printJSON(cmd, roster)
				}),
			},
			{
				Name:      "save",
				ArgsUsage: "<event-id> <member-id>=<Hadir|Izin|Alfa>[:notes]...",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					records, err := parseAttendance(cmd.Args().Slice()[1:])
					if err != nil {
						return err
					}
					saved, err := a.Dashboard().Attendance.Save(ctx, id, records)
					if err != nil {
						return err
					}
					return printJSON(cmd, saved)
				}),
			},
			{
				Name:  "counts",
				Usage: "attendance records per event on a page of events",
				Flags: pageFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					events, err := a.Dashboard().Events.List(ctx, cmd.Int("page"), cmd.Int("limit"))
					if err != nil {
						return err
					}
					counts, err := a.Dashboard().Attendance.Counts(ctx, events.Data)
					if err != nil {
						return err
					}
					return printJSON(cmd, counts)
				}),
			},
		},
	}
}

// parseAttendance reads "12=Hadir" or "12=Izin:sakit" arguments.
func parseAttendance(args []string) ([]dashboard.AttendanceFormData, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no attendance records given")
	}
	records := make([]dashboard.AttendanceFormData, 0, len(args))
	for _, arg := range args {
		member, rest, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid record %q: want <member-id>=<status>", arg)
		}
		memberID, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("invalid member id in %q: %w", arg, err)
		}
		status, notes, _ := strings.Cut(rest, ":")
		records = append(records, dashboard.AttendanceFormData{
			MemberID: memberID,
			Status:   status,
			Notes:    notes,
		})
	}
	return records, nil
}

func membersCommand() *cli.Command {
	return &cli.Command{
		Name:  "members",
		Usage: "browse members",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "members grouped by division",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					members, err := a.Dashboard().Members.List(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, members)
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
					member, err := a.Dashboard().Members.Get(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd, member)
				}),
			},
		},
	}
}

func newsCommand() *cli.Command {
	return &cli.Command{
		Name:  "news",
		Usage: "browse news and upload photos",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: pageFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					page, err := a.Dashboard().News.List(ctx, cmd.Int("page"), cmd.Int("limit"))
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
					item, err := a.Dashboard().News.Get(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd, item)
				}),
			},
			{
				Name:      "upload",
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

					photos, err := a.Dashboard().News.UploadPhotos(ctx, id, files)
					if err != nil {
						return err
					}
					return printJSON(cmd, photos)
				}),
			},
		},
	}
}

func minutesFormFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Required: true},
		&cli.StringFlag{Name: "date", Required: true, Usage: "meeting date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "description", Required: true},
		&cli.StringFlag{Name: "document-url"},
		&cli.IntFlag{Name: "event-id", Usage: "related event"},
	}
}

func minutesForm(cmd *cli.Command) (dashboard.MeetingMinutesFormData, error) {
	date, err := optionalDate(cmd, "date")
	if err != nil {
		return dashboard.MeetingMinutesFormData{}, err
	}
	form := dashboard.MeetingMinutesFormData{
		Title:       cmd.String("title"),
		Description: cmd.String("description"),
		DocumentURL: cmd.String("document-url"),
	}
	if date != nil {
		form.Date = *date
	}
	if cmd.IsSet("event-id") {
		eventID := cmd.Int("event-id")
		form.EventID = &eventID
	}
	return form, nil
}

func minutesCommand() *cli.Command {
	return &cli.Command{
		Name:  "minutes",
		Usage: "manage meeting minutes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Flags: pageFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					page, err := a.Dashboard().Minutes.List(ctx, cmd.Int("page"), cmd.Int("limit"))
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
					m, err := a.Dashboard().Minutes.Get(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd, m)
				}),
			},
			{
				Name:  "create",
				Flags: minutesFormFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					form, err := minutesForm(cmd)
					if err != nil {
						return err
					}
					m, err := a.Dashboard().Minutes.Create(ctx, form)
					if err != nil {
						return err
					}
					return printJSON(cmd, m)
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags:     minutesFormFlags(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					form, err := minutesForm(cmd)
					if err != nil {
						return err
					}
					m, err := a.Dashboard().Minutes.Update(ctx, id, form)
					if err != nil {
						return err
					}
					return printJSON(cmd, m)
				}),
			},
		},
	}
}
