package main

import (
	"context"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v3"
)

func NewProjectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage projects",
		Commands: []*cli.Command{
			{
				Name:  "save",
				Usage: "Create a project, or update it when --version is given",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Project id, generated when empty"},
					&cli.StringFlag{Name: "name", Usage: "Project name", Required: true},
					&cli.BoolFlag{Name: "public", Usage: "Anonymous sessions can see the project"},
					&cli.StringFlag{Name: "leader", Usage: "Project leader id", Required: true},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Assignment strategy (creator, project_leader, user_selected)",
						Value: string(workflow.UserSelectedAssignment),
					},
					&cli.StringSliceFlag{Name: "item-type", Usage: "Item types of the project"},
					&cli.StringSliceFlag{Name: "member", Usage: "Member users or groups"},
					&cli.IntFlag{Name: "version", Usage: "Version read before the update, 0 creates the project"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					project, err := a.projects.SaveProject(ctx, &workflow.SaveProjectParams{
						ID:                 command.String("id"),
						Name:               command.String("name"),
						IsPublic:           command.Bool("public"),
						LeaderID:           command.String("leader"),
						AssignmentStrategy: command.String("strategy"),
						ItemTypes:          command.StringSlice("item-type"),
						MemberIDs:          command.StringSlice("member"),
						ExpectedVersion:    int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(project)
				}),
			},
			{
				Name:      "show",
				Usage:     "Show a project",
				ArgsUsage: "<project-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					project, err := a.projects.FindProject(ctx, command.Args().First())
					if err != nil {
						return err
					}
					return a.print(project)
				}),
			},
			{
				Name:      "remove-item-type",
				Usage:     "Remove an item type from the project and from its links",
				ArgsUsage: "<project-id> <item-type>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "version", Usage: "Version read before the update", Required: true},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if command.Args().Len() != 2 {
						return errors.WithMessage(workflow.ErrParamInvalid, "expected <project-id> <item-type>")
					}
					project, err := a.projects.RemoveItemType(ctx, command.Args().Get(0), command.Args().Get(1), int64(command.Int("version")))
					if err != nil {
						return err
					}
					return a.print(project)
				}),
			},
			{
				Name:  "visible",
				Usage: "List the projects a session can see",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "User id, empty means anonymous"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					ids, err := a.projects.VisibleProjectIDs(ctx, command.String("user"))
					if err != nil {
						return err
					}
					return a.print(ids)
				}),
			},
		},
	}
}

func NewPrincipalCommand() *cli.Command {
	return &cli.Command{
		Name:  "principal",
		Usage: "Manage users and groups",
		Commands: []*cli.Command{
			{
				Name:  "save",
				Usage: "Create a user or group, or update it when --version is given",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Principal id, generated when empty"},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "kind", Usage: "user or group", Value: string(workflow.PrincipalKindUser)},
					&cli.IntFlag{Name: "version", Usage: "Version read before the update, 0 creates the principal"},
				},
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					principal, err := a.projects.SavePrincipal(ctx, &workflow.SavePrincipalParams{
						ID:      command.String("id"),
						Name:    command.String("name"),
						Kind:    command.String("kind"),
						Version: int64(command.Int("version")),
					})
					if err != nil {
						return err
					}
					return a.print(principal)
				}),
			},
			{
				Name:      "add-member",
				Usage:     "Add a user to a group",
				ArgsUsage: "<group-id> <user-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					if command.Args().Len() != 2 {
						return errors.WithMessage(workflow.ErrParamInvalid, "expected <group-id> <user-id>")
					}
					return a.projects.AddGroupMember(ctx, command.Args().Get(0), command.Args().Get(1))
				}),
			},
			{
				Name:      "remove",
				Usage:     "Drop a principal from every node authorization and delete its filters",
				ArgsUsage: "<principal-id>",
				Action: withApp(func(ctx context.Context, command *cli.Command, a *app) error {
					principalID := command.Args().First()
					if principalID == "" {
						return errors.WithMessage(workflow.ErrParamInvalid, "missing principal id")
					}
					if err := a.graph.RemovePrincipal(ctx, principalID); err != nil {
						return err
					}
					return a.filters.DeleteOfOwner(ctx, principalID)
				}),
			},
		},
	}
}
