package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"schedule-tracker/pkg/manager"
	"schedule-tracker/pkg/snapshot"
	"schedule-tracker/pkg/task"
)

func listCmd(flags *storageFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every stored task, epic and subtask",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := restoreFrom(cmd, flags)
			if err != nil {
				return err
			}
			entities := store.Snapshot(cmd.Context())
			if asJSON {
				return writeJSONLines(cmd.OutOrStdout(), entities)
			}
			return writeTable(cmd.OutOrStdout(), entities)
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "one JSON object per line")
	return cmd
}

func checkCmd(flags *storageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a snapshot the way the server loads it",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := restoreFrom(cmd, flags)
			if err != nil {
				return err
			}
			st := store.Stats(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tasks, %d epics, %d subtasks, %d scheduled, last id %d\n",
				st.Tasks, st.Epics, st.Subtasks, st.Prioritized, st.LastID)
			return nil
		},
	}
}

func exportCmd(flags *storageFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the snapshot as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := restoreFrom(cmd, flags)
			if err != nil {
				return err
			}
			entities := store.Snapshot(cmd.Context())
			if output == "" || output == "-" {
				return snapshot.WriteCSV(cmd.OutOrStdout(), entities)
			}
			return snapshot.NewCSVStore(output).Save(cmd.Context(), entities)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "target file (default stdout)")
	return cmd
}

func migrateCmd(flags *storageFlags) *cobra.Command {
	var (
		target snapshot.Config
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy a snapshot into another backend",
		Long: `Copy a snapshot into another backend.

The source is validated first; the target is replaced as a whole.

Examples:
  taskctl migrate --path tasks.csv --to-backend sqlite --to-path data/tasks.db
  taskctl migrate --backend sqlite --path data/tasks.db --to-backend postgres --to-dsn "$DATABASE_URL"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target.Backend == "" || target.Backend == snapshot.BackendMemory {
				return errors.New("--to-backend must name a persistent backend")
			}
			store, err := restoreFrom(cmd, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			entities := store.Snapshot(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d entities\n", len(entities))
			if dryRun {
				fmt.Fprintln(out, "Dry run - no changes made")
				return nil
			}

			dst, err := snapshot.Open(ctx, target)
			if err != nil {
				return fmt.Errorf("open target: %w", err)
			}
			defer dst.Close()
			if err := dst.Save(ctx, entities); err != nil {
				return fmt.Errorf("save target: %w", err)
			}
			fmt.Fprintf(out, "Migrated %d entities to %s\n", len(entities), target.Backend)
			return nil
		},
	}
	cmd.Flags().StringVar(&target.Backend, "to-backend", "", "target backend (csv, sqlite, postgres)")
	cmd.Flags().StringVar(&target.Path, "to-path", "", "target csv file or sqlite database")
	cmd.Flags().StringVar(&target.DSN, "to-dsn", "", "target postgres connection string")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the source without writing")
	return cmd
}

// restoreFrom loads the configured snapshot into a fresh store, which
// applies the same checks as a server start.
func restoreFrom(cmd *cobra.Command, flags *storageFlags) (*manager.Memory, error) {
	sc, err := flags.resolve(cmd)
	if err != nil {
		return nil, err
	}
	if sc.Backend == snapshot.BackendCSV && sc.Path != "" {
		if _, err := os.Stat(sc.Path); err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
	}
	ctx := cmd.Context()
	src, err := snapshot.Open(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sc.Backend, err)
	}
	if src == nil {
		return nil, fmt.Errorf("backend %q keeps nothing to read", sc.Backend)
	}
	defer src.Close()

	entities, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	store := manager.NewMemory()
	if err := store.Restore(ctx, entities); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return store, nil
}

func writeTable(w io.Writer, entities []task.Entity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tSTART\tDURATION\tEPIC\tNAME")
	for _, e := range entities {
		info := e.Info()
		start, dur, epic := "-", "-", "-"
		if info.Scheduled() {
			start = info.StartTime().Format(time.RFC3339)
			dur = info.Duration().String()
		}
		if st, ok := e.(*task.Subtask); ok {
			epic = fmt.Sprint(st.EpicID())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.ID(), e.Kind(), info.Status(), start, dur, epic, info.Name())
	}
	return tw.Flush()
}

type entityLine struct {
	ID          int       `json:"id"`
	Kind        task.Kind `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartTime   string    `json:"startTime,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	EpicID      int       `json:"epicId,omitempty"`
	SubtaskIDs  []int     `json:"subtaskIds,omitempty"`
}

func writeJSONLines(w io.Writer, entities []task.Entity) error {
	enc := json.NewEncoder(w)
	for _, e := range entities {
		info := e.Info()
		line := entityLine{
			ID:          info.ID(),
			Kind:        e.Kind(),
			Name:        info.Name(),
			Description: info.Description(),
			Status:      string(info.Status()),
		}
		if info.Scheduled() {
			line.StartTime = info.StartTime().Format(time.RFC3339Nano)
			line.Duration = info.Duration().String()
		}
		switch v := e.(type) {
		case *task.Subtask:
			line.EpicID = v.EpicID()
		case *task.Epic:
			line.SubtaskIDs = v.SubtaskIDs()
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
