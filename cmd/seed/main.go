package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/clarktrimble/sabot"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sieve"
	nt "sieve/entity"
	"sieve/store/duck"
	"sieve/util"
	"sieve/validate"
)

var (
	dbPath       string
	logPath      string
	status       string
	validateOnly bool
)

func main() {

	root := &cobra.Command{
		Use:   "seed",
		Short: "Manage filter definitions in a DuckDB store",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "filters.duckdb", "duckdb file")
	root.PersistentFlags().StringVar(&logPath, "log", "seed.log", "log file")

	load := &cobra.Command{
		Use:   "load <layout.yaml>",
		Short: "Store a layout's filters, publishing those marked published",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	load.Flags().BoolVar(&validateOnly, "validate-only", false, "report problems without storing")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored filters",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	list.Flags().StringVar(&status, "status", "", "only filters with status (draft, published, deprecated)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored filter as yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	root.AddCommand(load, list, show)

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func open(ctx context.Context) (dk *duck.Duck, lgr *sabot.Sabot, lctx context.Context, err error) {

	lgr = &sabot.Sabot{Writer: util.OpenLog(logPath, 0644), MaxLen: 999}
	lctx = lgr.WithFields(ctx, "run_id", uuid.NewString()[:8])

	dk, err = (&duck.Config{Path: dbPath}).New(lctx, lgr)
	return
}

func runLoad(cmd *cobra.Command, args []string) (err error) {

	layout, err := sieve.LoadLayout(args[0])
	if err != nil {
		return
	}

	if validateOnly {
		for _, flt := range layout.Filters {
			report(cmd, flt.Id, validate.Filter(flt))
		}
		return
	}

	dk, lgr, ctx, err := open(cmd.Context())
	if err != nil {
		return
	}
	defer dk.Close()

	sv := (&sieve.Config{}).New(dk, lgr)

	for _, flt := range layout.Filters {

		_, err = dk.Fetch(ctx, flt.Id)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: already stored, skipping\n", flt.Id)
			continue
		}

		err = seed(ctx, cmd, sv, dk, flt)
		if err != nil {
			return
		}
	}

	return
}

func seed(ctx context.Context, cmd *cobra.Command, sv *sieve.Sieve, dk *duck.Duck, flt nt.Filter) (err error) {

	out := cmd.OutOrStdout()

	// stored instances get fresh ids
	instances := make([]nt.Instance, len(flt.Instances))
	for i, inst := range flt.Instances {
		inst.Id = ""
		instances[i] = inst
	}

	draft := flt
	draft.Status = nt.Draft
	draft.Instances = nil
	draft, err = dk.Create(ctx, draft)
	if err != nil {
		return
	}

	switch flt.Status {
	case nt.Published:
		draft.Instances = instances
		draft.Version = flt.Version - 1
		var result sieve.PublishResult
		result, err = sv.Publish(ctx, draft)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%s: published v%d with %d instance(s)\n", flt.Id, result.Filter.Version, len(result.Succeeded))

	case nt.Deprecated:
		_, err = sv.Deprecate(ctx, draft)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%s: deprecated\n", flt.Id)

	default:
		var problems []nt.ValidationError
		_, problems, err = sv.SaveDraft(ctx, draft)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%s: saved as draft\n", flt.Id)
		report(cmd, flt.Id, problems)
	}

	return
}

func report(cmd *cobra.Command, id string, problems []nt.ValidationError) {

	for _, problem := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, problem.Error())
	}
}

func runList(cmd *cobra.Command, args []string) (err error) {

	dk, _, ctx, err := open(cmd.Context())
	if err != nil {
		return
	}
	defer dk.Close()

	flts, err := dk.List(ctx, nt.Status(status))
	if err != nil {
		return
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tVERSION")
	for _, flt := range flts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", flt.Id, flt.Name, flt.Type, flt.Status, flt.Version)
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) (err error) {

	dk, _, ctx, err := open(cmd.Context())
	if err != nil {
		return
	}
	defer dk.Close()

	flt, err := dk.Fetch(ctx, args[0])
	if err != nil {
		return
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	err = enc.Encode(flt)
	if err != nil {
		return
	}
	return enc.Close()
}
