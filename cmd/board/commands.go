package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"flowtrack/internal/board"
	"flowtrack/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

// load fills the board and says so when only sample data could be shown
func (a *app) load(ctx context.Context) error {
	if err := a.board.Load(ctx); err != nil {
		return err
	}
	if a.board.Degraded() {
		fmt.Fprintln(a.out, "API unreachable, showing sample data")
	}
	return nil
}

func (a *app) list(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	a.printAssets(a.board.Assets())
	return nil
}

func (a *app) columns(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	for _, col := range a.board.Columns() {
		fmt.Fprintf(a.out, "== %s (%d)\n", col.Status, len(col.Assets))
		for _, asset := range col.Assets {
			fmt.Fprintf(a.out, "  %s  %s  %s\n", asset.ID, asset.Email, asset.Type)
		}
	}
	return nil
}

func (a *app) printAssets(assets []models.Asset) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tTYPE\tLOCATION\tSTATUS\tOPENED\tDESCRIPTION")
	for _, asset := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			asset.ID, asset.Email, asset.Type, asset.Location, asset.Status, opened(asset.OpenDate), asset.Description)
	}
	tw.Flush()
}

func opened(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	var d board.Draft
	var status string
	fs.StringVar(&d.Email, "email", "", "owner email (required)")
	fs.StringVar(&d.Type, "type", "", "asset type (default Laptop)")
	fs.StringVar(&d.Location, "location", "", "WFO or WFH (default WFO)")
	fs.StringVar(&status, "status", "", "active, maintenance or inactive (default active)")
	fs.StringVar(&d.Description, "desc", "", "free text description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d.Status = parseStatus(status)

	created, err := a.board.Create(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s\n", created.ID)
	return nil
}

func (a *app) move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: move ID STATUS")
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	return a.board.Move(ctx, args[0], parseStatus(args[1]))
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit")
	email := fs.String("email", "", "owner email")
	typ := fs.String("type", "", "asset type")
	location := fs.String("location", "", "WFO or WFH")
	status := fs.String("status", "", "active, maintenance or inactive")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: edit ID [--email E] [--type T] [--location L] [--status S] [--desc D]")
	}

	var p models.AssetPatch
	if fs.Changed("email") {
		p.Email = email
	}
	if fs.Changed("type") {
		p.Type = typ
	}
	if fs.Changed("location") {
		p.Location = location
	}
	if fs.Changed("status") {
		s := parseStatus(*status)
		p.Status = &s
	}
	if fs.Changed("desc") {
		p.Description = desc
	}
	if p.Empty() {
		return errors.New("nothing to change")
	}

	if err := a.load(ctx); err != nil {
		return err
	}
	return a.board.Edit(ctx, fs.Arg(0), p)
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete ID")
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	return a.board.Delete(ctx, args[0])
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := a.account.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s <%s>\n", sess.Name, sess.Email)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := a.account.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered and signed in as %s <%s>\n", sess.Name, sess.Email)
	return nil
}

func (a *app) logout() error {
	if err := a.account.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) whoami() error {
	sess, ok := a.account.Current()
	if !ok {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d)\n", sess.Name, sess.Email, sess.ID)
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: profile get|list|save|delete")
	}
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return errors.New("usage: profile get EMAIL")
		}
		p, err := a.client.GetProfile(ctx, args[1])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintf(a.out, "no profile for %s\n", args[1])
			return nil
		}
		a.printProfiles([]models.Profile{*p})
		return nil

	case "list":
		profiles, err := a.client.ListProfiles(ctx)
		if err != nil {
			return err
		}
		a.printProfiles(profiles)
		return nil

	case "save":
		fs := newFlagSet("profile save")
		var p models.Profile
		fs.StringVar(&p.Email, "email", "", "profile email (required)")
		fs.StringVar(&p.FullName, "name", "", "full name")
		fs.StringVar(&p.Department, "department", "", "department")
		fs.StringVar(&p.Phone, "phone", "", "phone number")
		fs.StringVar(&p.Location, "location", "", "location")
		upsert := fs.Bool("upsert", true, "save in one request; false looks the profile up first")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(p.Email) == "" {
			return errors.New("--email is required")
		}
		save := a.client.UpsertProfile
		if !*upsert {
			save = a.client.SaveProfile
		}
		saved, err := save(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "saved profile %d for %s\n", saved.ID, saved.Email)
		return nil

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: profile delete ID")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid profile id %q", args[1])
		}
		if err := a.client.DeleteProfile(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted profile %d\n", id)
		return nil
	}
	return fmt.Errorf("unknown profile command %q", args[0])
}

func (a *app) printProfiles(profiles []models.Profile) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tDEPARTMENT\tPHONE\tLOCATION")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Email, p.FullName, p.Department, p.Phone, p.Location)
	}
	tw.Flush()
}

// parseStatus accepts either vocabulary; the board rejects anything unknown
func parseStatus(s string) models.Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if st, ok := models.StatusFromRemote(models.NormalizeRemoteStatus(s)); ok {
		return st
	}
	return models.Status(strings.ToLower(s))
}
