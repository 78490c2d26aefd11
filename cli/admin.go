package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/school-directory/school"
)

// storeInfo describes the configured store.
type storeInfo struct {
	Backend string   `json:"backend"`
	DataDir string   `json:"data_dir"`
	Key     string   `json:"key"`
	Keys    []string `json:"keys"`
	Schools int      `json:"schools"`
	Error   string   `json:"error,omitempty"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the configured store and the keys it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			keys, err := e.items.Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing keys: %w", err)
			}
			info := storeInfo{
				Backend: e.cfg.Store.Backend,
				DataDir: e.cfg.Store.DataDir,
				Key:     e.cfg.Store.Key,
				Keys:    append([]string{}, keys...),
			}
			// A corrupt collection is reported, not fatal, so info stays usable
			// for diagnosing it.
			if schools, err := e.records.List(cmd.Context()); err != nil {
				info.Error = school.Message(err, "Failed to fetch schools")
			} else {
				info.Schools = len(schools)
			}

			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:  %s\n", info.Backend)
			fmt.Fprintf(out, "data dir: %s\n", info.DataDir)
			fmt.Fprintf(out, "key:      %s\n", info.Key)
			fmt.Fprintf(out, "keys:     %s\n", strings.Join(info.Keys, ", "))
			if info.Error != "" {
				_, err = fmt.Fprintf(out, "schools:  %s\n", info.Error)
				return err
			}
			_, err = fmt.Fprintf(out, "schools:  %d\n", info.Schools)
			return err
		},
	}
}

var errConfirm = errors.New("refusing to clear without --yes")

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every school by deleting the collection key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errConfirm
			}
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			existed, err := e.records.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to clear schools"), err)
			}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"status": "cleared", "existed": existed})
			}
			if !existed {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to clear")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal of all schools")
	return cmd
}
