package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stevemurr/school-directory/dataurl"
	"github.com/stevemurr/school-directory/school"
)

// errInvalidForm is returned after the field errors have been printed.
var errInvalidForm = errors.New("invalid school form")

// formFlags binds the school form to command flags.
type formFlags struct {
	form      school.FormData
	imagePath string
}

func (f *formFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.form.Name, school.FieldName, "", "school name")
	fl.StringVar(&f.form.Address, school.FieldAddress, "", "street address")
	fl.StringVar(&f.form.City, school.FieldCity, "", "city")
	fl.StringVar(&f.form.State, school.FieldState, "", "state")
	fl.StringVar(&f.form.Contact, school.FieldContact, "", "contact number (digits, '-' or '+', at least 10)")
	fl.StringVar(&f.form.Email, school.FieldEmail, "", "contact email")
	fl.StringVar(&f.imagePath, school.FieldImage, "", "path to the school image")
}

// open attaches the image file to the form. The returned closer is never nil.
func (f *formFlags) open() (school.FormData, func(), error) {
	form := f.form
	if f.imagePath == "" {
		return form, func() {}, nil
	}
	file, err := os.Open(f.imagePath)
	if err != nil {
		return form, func() {}, err
	}
	form.Image = &dataurl.Blob{
		Name:      filepath.Base(f.imagePath),
		MediaType: mime.TypeByExtension(filepath.Ext(f.imagePath)),
		Body:      file,
	}
	return form, func() { file.Close() }, nil
}

// prefill keeps the stored value for every flag the user did not set, the way
// the edit form starts from the existing record.
func (f *formFlags) prefill(cmd *cobra.Command, s school.School) {
	keep := func(field string, dst *string, v string) {
		if !cmd.Flags().Changed(field) {
			*dst = v
		}
	}
	keep(school.FieldName, &f.form.Name, s.Name)
	keep(school.FieldAddress, &f.form.Address, s.Address)
	keep(school.FieldCity, &f.form.City, s.City)
	keep(school.FieldState, &f.form.State, s.State)
	keep(school.FieldContact, &f.form.Contact, s.Contact)
	keep(school.FieldEmail, &f.form.Email, s.Email)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid school id %q", arg)
	}
	return id, nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all schools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			schools, err := e.records.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to fetch schools"), err)
			}
			return writeSchools(cmd.OutOrStdout(), rootOpts.Format, schools)
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &formFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form, closeImage, err := flags.open()
			defer closeImage()
			if err != nil {
				return err
			}
			if res := school.Validate(form); !res.Valid {
				return writeInvalid(cmd, rootOpts.Format, res)
			}

			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := e.records.Add(cmd.Context(), form)
			if err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to add school"), err)
			}
			return writeSchools(cmd.OutOrStdout(), rootOpts.Format, []school.School{s})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &formFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a school; unset flags keep their stored values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			schools, err := e.records.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to update school"), err)
			}
			i := slices.IndexFunc(schools, func(s school.School) bool { return s.ID == id })
			if i < 0 {
				return fmt.Errorf("School not found: %w", school.ErrNotFound)
			}
			flags.prefill(cmd, schools[i])

			form, closeImage, err := flags.open()
			defer closeImage()
			if err != nil {
				return err
			}
			if res := school.ValidateUpdate(form); !res.Valid {
				return writeInvalid(cmd, rootOpts.Format, res)
			}
			s, err := e.records.Update(cmd.Context(), id, form)
			if err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to update school"), err)
			}
			return writeSchools(cmd.OutOrStdout(), rootOpts.Format, []school.School{s})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a school",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.records.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("%s: %w", school.Message(err, "Failed to delete school"), err)
			}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"status": "deleted", "id": id})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", id)
			return err
		},
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &formFlags{}
	var update bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a school form without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form, closeImage, err := flags.open()
			defer closeImage()
			if err != nil {
				return err
			}
			res := school.Validate(form)
			if update {
				res = school.ValidateUpdate(form)
			}
			if !res.Valid {
				return writeInvalid(cmd, rootOpts.Format, res)
			}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&update, "update", false, "apply the edit-form rules (image optional)")
	return cmd
}

func writeSchools(w io.Writer, format string, schools []school.School) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(schools)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCITY\tSTATE\tCONTACT\tEMAIL")
	for _, s := range schools {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.City, s.State, s.Contact, s.Email)
	}
	return tw.Flush()
}

// writeInvalid prints field errors in field order and returns errInvalidForm.
func writeInvalid(cmd *cobra.Command, format string, res school.Result) error {
	if format == "json" {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res); err != nil {
			return err
		}
		return errInvalidForm
	}
	for _, field := range []string{
		school.FieldName, school.FieldAddress, school.FieldCity, school.FieldState,
		school.FieldContact, school.FieldEmail, school.FieldImage,
	} {
		if msg, ok := res.Errors[field]; ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
		}
	}
	return errInvalidForm
}
