package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coursepalette/coursepalette/core/access"
)

type routeEntry struct {
	Path     string        `yaml:"path"`
	Gate     string        `yaml:"gate,omitempty"`
	Access   access.Policy `yaml:"access,omitempty"`
	Page     string        `yaml:"page"`
	Redirect string        `yaml:"redirect,omitempty"`
}

func (cli *commandLine) routesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	cmd.PersistentFlags().StringVar(&file, "file", cli.conf.RoutesFile, "route table file; the embedded table when empty")

	load := func() (*access.Table, error) { return access.LoadTableFile(file) }

	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Validate the route table",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				t, err := load()
				if err != nil {
					return err
				}
				return cli.checkRoutes(t)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print the route table",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				t, err := load()
				if err != nil {
					return err
				}
				return cli.listRoutes(t)
			},
		},
		cli.explainCmd(load),
	)
	return cmd
}

func (cli *commandLine) checkRoutes(t *access.Table) error {
	if problems := t.Check(); len(problems) > 0 {
		return errors.Errorf("invalid route table:\n  %s", strings.Join(problems, "\n  "))
	}
	_, _ = fmt.Fprintf(cli.out, "%d routes OK\n", len(t.Routes))
	return nil
}

func (cli *commandLine) listRoutes(t *access.Table) error {
	entries := make([]routeEntry, len(t.Routes))
	for i, r := range t.Routes {
		entries[i] = routeEntry{Path: r.Path, Page: r.Page, Redirect: r.Redirect}
		if r.Gate == access.GateAuth {
			entries[i].Gate = string(r.Gate)
		} else {
			entries[i].Access = r.Policy
		}
	}
	enc := yaml.NewEncoder(cli.out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(struct {
		Paths  access.Paths `yaml:"paths"`
		Routes []routeEntry `yaml:"routes"`
	}{t.Paths, entries})
}

func (cli *commandLine) explainCmd(load func() (*access.Table, error)) *cobra.Command {
	var (
		role    string
		loading bool
		from    string
	)
	cmd := &cobra.Command{
		Use:   "explain PATH",
		Short: "Show the gate decision for a visitor opening PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := load()
			if err != nil {
				return err
			}
			s := access.AnonymousSession()
			switch {
			case loading:
				s = access.LoadingSession()
			case role != "":
				r, err := access.ParseRole(role)
				if err != nil {
					return err
				}
				s = access.AuthenticatedSession(access.Principal{Username: "explain", Role: r})
			}
			return cli.explain(t, s, args[0], from)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role of the authenticated visitor; anonymous when empty")
	cmd.Flags().BoolVar(&loading, "loading", false, "the visitor's session is still resolving")
	cmd.Flags().StringVar(&from, "from", "", "location the visitor was sent away from")
	return cmd
}

func (cli *commandLine) explain(t *access.Table, s access.Session, target, from string) error {
	loc, err := parseLocation(target)
	if err != nil {
		return err
	}
	var fromLoc *access.Location
	if from != "" {
		l, err := parseLocation(from)
		if err != nil {
			return err
		}
		fromLoc = &l
	}

	route, params, d, ok := t.Evaluate(s, loc, fromLoc)
	if !ok {
		return errors.Errorf("no route serves %s", loc.Path)
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Route    access.Route      `json:"route"`
		Params   map[string]string `json:"params,omitempty"`
		Session  access.Session    `json:"session"`
		Decision access.Decision   `json:"decision"`
	}{route, params, s, d})
}

func parseLocation(s string) (access.Location, error) {
	loc, ok := access.ParseLocation(s)
	if !ok {
		return access.Location{}, errors.Errorf("%q is not a local path", s)
	}
	return loc, nil
}
