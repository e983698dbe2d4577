package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/garderoba/internal/admin"
	"github.com/erazemk/garderoba/internal/bootstrap"
	"github.com/erazemk/garderoba/internal/catalog"
	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/store"
)

func initCmd(e *env) *cobra.Command {
	var adminEmail string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database with an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminEmail == "" {
				adminEmail = e.cfg.Server.AdminEmail
			}
			if adminEmail == "" {
				return errors.New("--admin-email is required")
			}
			if _, err := os.Stat(e.cfg.Server.DBPath); err == nil {
				return fmt.Errorf("database %s already exists", e.cfg.Server.DBPath)
			}

			database, password, err := bootstrap.Init(cmd.Context(), e.cfg.Server.DBPath, adminEmail)
			if err != nil {
				return err
			}
			defer database.Close()

			bootstrap.PrintResult(e.cfg.Server.DBPath, adminEmail, password)
			return nil
		},
	}

	cmd.Flags().StringVarP(&adminEmail, "admin-email", "u", "", "Admin email address")

	return cmd
}

func catalogCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the garment catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import garments from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := catalog.Parse(f)
			if err != nil {
				return err
			}

			database, err := e.open()
			if err != nil {
				return err
			}
			defer database.Close()

			garments, err := catalog.Import(cmd.Context(), database, entries)
			if err != nil {
				return err
			}

			pub, done, err := e.publisher(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			if pub != nil {
				if err := feed.Publish(cmd.Context(), pub, "", feed.TableGarments); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: announcing import: %v\n", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d garments.\n", len(garments))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog garments with their security codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := e.open()
			if err != nil {
				return err
			}
			defer database.Close()

			garments, err := store.ListGarments(cmd.Context(), database)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBRAND\tCODE")
			for _, g := range garments {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", g.ID, g.Name, g.Brand, g.SecurityCode)
			}
			return w.Flush()
		},
	})

	return cmd
}

func requestsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Review and answer access requests",
	}

	// withService opens the database and feed and hands an admin service to fn.
	withService := func(cmd *cobra.Command, fn func(s *admin.Service) error) error {
		database, err := e.open()
		if err != nil {
			return err
		}
		defer database.Close()

		pub, done, err := e.publisher(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		return fn(&admin.Service{DB: database, Feed: pub})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List access requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(s *admin.Service) error {
				requests, err := s.ListRequests(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSER\tGARMENT\tBRAND\tSTATUS\tSUGGESTED")
				for _, r := range requests {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.UserID, r.GarmentName, r.Brand, r.Status, r.SuggestedCode)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id> <code>",
		Short: "Approve a pending request and send the user its code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(s *admin.Service) error {
				if _, err := s.Resolve(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request %s resolved.\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deny <id>",
		Short: "Deny a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(s *admin.Service) error {
				if _, err := s.Deny(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request %s denied.\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
