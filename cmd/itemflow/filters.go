package main

import (
	"context"
	"strconv"

	"github.com/blingmoon/itemflow/filter"
	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v3"
)

var filterDimensions = []string{"project", "state", "responsible", "item-type", "node"}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Usage: "User id of the session, empty means anonymous"}
}

// criteriaFlags 每个维度一个取值列表和一个取反开关
func criteriaFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(filterDimensions)*2+3)
	for _, dimension := range filterDimensions {
		flags = append(flags,
			&cli.StringSliceFlag{Name: dimension, Usage: "Selected " + dimension + " values"},
			&cli.BoolFlag{Name: "not-" + dimension, Usage: "Exclude the selected " + dimension + " values"},
		)
	}
	return append(flags,
		&cli.StringFlag{Name: "text", Usage: "Case-insensitive text in title or description"},
		&cli.StringFlag{Name: "seq", Usage: "Item sequence number"},
		&cli.StringFlag{Name: "token", Usage: "Start from an encoded filter token"},
	)
}

func component(command *cli.Command, dimension string) filter.Component {
	return filter.NewComponent(command.Bool("not-"+dimension), command.StringSlice(dimension)...)
}

// specFromFlags 先解析token, 再用命令行上给出的维度覆盖
func specFromFlags(command *cli.Command, session filter.SessionContext) (*filter.Spec, error) {
	spec := session.NewSpec()
	if token := command.String("token"); token != "" {
		decoded, err := filter.DecodeToken(token)
		if err != nil {
			return nil, err
		}
		decoded.OwnerID = spec.OwnerID
		spec = decoded
	}
	targets := map[string]*filter.Component{
		"project":     &spec.Project,
		"state":       &spec.State,
		"responsible": &spec.Responsible,
		"item-type":   &spec.ItemType,
		"node":        &spec.Node,
	}
	for _, dimension := range filterDimensions {
		if command.IsSet(dimension) || command.IsSet("not-"+dimension) {
			*targets[dimension] = component(command, dimension)
		}
	}
	if command.IsSet("text") {
		spec.Text = command.String("text")
	}
	if raw := command.String("seq"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(workflow.ErrParamInvalid, "invalid seq %q", raw)
		}
		spec.ItemSeq = seq
	}
	return spec, nil
}

func sessionOf(command *cli.Command) filter.SessionContext {
	if user := command.String("user"); user != "" {
		return filter.AuthenticatedContext(user)
	}
	return filter.AnonymousContext()
}

func NewFilterCommand() *cli.Command {
	return &cli.Command{
		Name:  "filter",
		Usage: "Run and store item filters",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Select the visible items matching a filter",
				Flags: append(criteriaFlags(),
					userFlag(),
					&cli.StringFlag{Name: "id", Usage: "Run a stored filter instead of the flags"},
					&cli.StringFlag{Name: "order-by", Usage: "seq, created_at, updated_at or title", Value: "seq"},
					&cli.BoolFlag{Name: "desc", Usage: "Descending order"},
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.IntFlag{Name: "size", Usage: "Page size", Value: 100},
				),
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					session := sessionOf(command)
					var spec *filter.Spec
					if id := command.String("id"); id != "" {
						stored, err := a.filters.Find(ctx, id)
						if err != nil {
							return err
						}
						spec = stored
					} else {
						built, err := specFromFlags(command, session)
						if err != nil {
							return err
						}
						spec = built
					}
					asc := !command.Bool("desc")
					items, total, err := a.engine.Select(ctx, session, &filter.SelectParams{
						Spec:       spec,
						OrderBy:    command.String("order-by"),
						OrderByAsc: &asc,
						Page: &workflow.Pager{
							Page: int64(command.Int("page")),
							Size: int64(command.Int("size")),
						},
					})
					if err != nil {
						return err
					}
					return a.print(map[string]any{"total": total, "items": items})
				}),
			},
			{
				Name:  "save",
				Usage: "Store a filter under the session user",
				Flags: append(criteriaFlags(),
					&cli.StringFlag{Name: "user", Usage: "Owner user id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Filter name, unique per owner", Required: true},
					&cli.BoolFlag{Name: "favorite", Usage: "Mark the filter as favorite"},
				),
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					spec, err := specFromFlags(command, sessionOf(command))
					if err != nil {
						return err
					}
					spec.Name = command.String("name")
					spec.Favorite = command.Bool("favorite")
					saved, err := a.filters.Save(ctx, spec)
					if err != nil {
						return err
					}
					return a.print(saved)
				}),
			},
			{
				Name:      "favorite",
				Usage:     "Mark or unmark a stored filter as favorite",
				ArgsUsage: "<filter-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Owner user id", Required: true},
					&cli.BoolFlag{Name: "off", Usage: "Remove the favorite mark"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					spec, err := a.filters.SetFavorite(ctx, command.String("user"), command.Args().First(), !command.Bool("off"))
					if err != nil {
						return err
					}
					return a.print(spec)
				}),
			},
			{
				Name:  "list",
				Usage: "List the stored filters of a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Owner user id", Required: true},
					&cli.BoolFlag{Name: "favorites", Usage: "Only favorites"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					var (
						specs []*filter.Spec
						err   error
					)
					if command.Bool("favorites") {
						specs, err = a.filters.FindFavorites(ctx, command.String("user"))
					} else {
						specs, err = a.filters.FindByOwner(ctx, command.String("user"))
					}
					if err != nil {
						return err
					}
					return a.print(specs)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored filter",
				ArgsUsage: "<filter-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Owner user id", Required: true},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					return a.filters.Delete(ctx, command.String("user"), command.Args().First())
				}),
			},
			{
				Name:  "token",
				Usage: "Encode the filter criteria as a shareable token",
				Flags: append(criteriaFlags(), userFlag()),
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					spec, err := specFromFlags(command, sessionOf(command))
					if err != nil {
						return err
					}
					token, err := filter.EncodeToken(spec)
					if err != nil {
						return err
					}
					return a.print(map[string]string{"token": token})
				}),
			},
		},
	}
}
