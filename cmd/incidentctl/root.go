package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dankishon/prtc-mvp-back/internal/fixtures"
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/service"
)

// session - открытые зависимости одной команды
type session struct {
	service service.IncidentService
	store   fixtures.Store
	logger  *logrus.Logger
	close   func()
}

type opener func(ctx context.Context) (*session, error)

type commandResult struct {
	Outcome  models.Outcome   `json:"outcome"`
	Incident *models.Incident `json:"incident"`
}

// newRootCmd собирает дерево команд. open вызывается лениво, только когда команда запускается.
func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "incidentctl",
		Short:         "Operator tool for the incident proof lifecycle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withSession := func(run func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return run(cmd, s, args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load demo companies and incidents",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, s *session, _ []string) error {
			res, err := fixtures.Seed(cmd.Context(), s.store, s.logger)
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		}),
	})

	var override bool
	requestProof := &cobra.Command{
		Use:   "request-proof <incident-id>",
		Short: "Request proof generation, or re-request it after a rejection with --override",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			incident, outcome, err := s.service.RequestProof(cmd.Context(), args[0], override)
			if err != nil {
				return err
			}
			return writeJSON(out, commandResult{Outcome: outcome, Incident: incident})
		}),
	}
	requestProof.Flags().BoolVar(&override, "override", false, "operator override: supersede a running job or retry a rejected proof")
	root.AddCommand(requestProof)

	root.AddCommand(&cobra.Command{
		Use:   "resubmit <incident-id>",
		Short: "Resubmit the verification transaction of an incident whose transaction failed",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			incident, outcome, err := s.service.Resubmit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, commandResult{Outcome: outcome, Incident: incident})
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "show <incident-id>",
		Short: "Print an incident",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			incident, err := s.service.GetIncident(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, incident)
		}),
	})

	return root
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
