package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/ical"
	"github.com/thirtyone/event-management/internal/store"
)

// Scenario is the YAML shape seed loads: organizers first, then events
// with their guest lists.
type Scenario struct {
	Tenant     string          `yaml:"tenant"`
	Organizers []SeedOrganizer `yaml:"organizers"`
	Events     []SeedEvent     `yaml:"events"`
}

type SeedOrganizer struct {
	Mailto    string `yaml:"mailto"`
	Paid      bool   `yaml:"paid"`
	Bulk      bool   `yaml:"bulk"`
	Suspended bool   `yaml:"suspended"`
}

type SeedEvent struct {
	UID         string      `yaml:"uid"`
	Organizer   string      `yaml:"organizer"`
	Name        string      `yaml:"name"`
	Summary     string      `yaml:"summary"`
	Description string      `yaml:"description"`
	Location    string      `yaml:"location"`
	Start       time.Time   `yaml:"start"`
	End         time.Time   `yaml:"end"`
	InviteLimit int         `yaml:"invite_limit"`
	Attendees   []SeedGuest `yaml:"attendees"`
}

type SeedGuest struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	PartStat string `yaml:"partstat"`
}

func newSeedCmd() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "seed <scenario.yaml>",
		Short: "Load a development scenario",
		Long: `Write a scenario's organizers, events and attendees straight into the
table, bypassing the mail pipeline. Meant for development stacks; rows
that already exist are left alone, so re-running a scenario is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, err := resolveName(ctx, table, "table")
			if err != nil {
				return err
			}
			sc, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			db, err := store.NewClient(ctx)
			if err != nil {
				return err
			}
			return applyScenario(ctx, cmd.OutOrStdout(), store.New(db, name), sc)
		},
	}

	cmd.Flags().StringVar(&table, "table", config.TableName(), "DynamoDB table name")
	return cmd
}

func loadScenario(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", file, err)
	}
	if sc.Tenant == "" {
		sc.Tenant = "thirtyone"
	}
	return &sc, nil
}

func applyScenario(ctx context.Context, out io.Writer, st *store.Store, sc *Scenario) error {
	if err := st.EnsureSystemStatistics(ctx, sc.Tenant); err != nil {
		return err
	}

	for _, org := range sc.Organizers {
		mailto := strings.ToLower(org.Mailto)
		if _, err := st.EnsureOrganizerStatistics(ctx, mailto, sc.Tenant); err != nil {
			return err
		}
		if org.Paid {
			if err := st.GrantSubscription(ctx, mailto); err != nil {
				return err
			}
		}
		if org.Bulk {
			if err := st.AuthorizeBulkSender(ctx, mailto); err != nil {
				return err
			}
		}
		if org.Suspended {
			if err := st.SuspendOrganizer(ctx, mailto); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "organizer %s\n", mailto)
	}

	now := time.Now().Unix()
	for _, se := range sc.Events {
		ev := seedEvent(se, sc.Tenant, now)
		if _, err := st.EnsureOrganizerStatistics(ctx, ev.Mailto, sc.Tenant); err != nil {
			return err
		}

		err := st.CreateEvent(ctx, &ev)
		if errors.Is(err, store.ErrEventExists) {
			fmt.Fprintf(out, "event %s already seeded\n", ev.UID)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "event %s %q\n", ev.UID, ev.Summary)

		for _, g := range se.Attendees {
			req := store.InviteRequest{
				Email:    strings.ToLower(g.Email),
				Name:     g.Name,
				Origin:   "seed",
				PartStat: ical.NormalizePartStat(g.PartStat),
				ProdID:   ical.ProdID,
				UID:      ev.UID,
			}
			err := st.RecordInvite(ctx, &ev, req, ical.ProdID, now)
			if errors.Is(err, store.ErrAlreadyInvited) {
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  attendee %s (%s)\n", req.Email, req.PartStat)
		}
	}
	return nil
}

func seedEvent(se SeedEvent, tenant string, now int64) store.Event {
	uid := strings.ToLower(se.UID)
	if uid == "" {
		uid = uuid.NewString()
	}
	mailto := strings.ToLower(se.Organizer)

	ev := store.Event{
		UID:               uid,
		OriginalUID:       uid,
		Mailto:            mailto,
		Organizer:         se.Name,
		Summary:           se.Summary,
		SummaryHTML:       ical.HTMLText(se.Summary),
		Description:       se.Description,
		DescriptionHTML:   ical.HTMLText(se.Description),
		Location:          se.Location,
		LocationHTML:      ical.HTMLText(se.Location),
		DtStart:           se.Start.Unix(),
		DtEnd:             se.End.Unix(),
		DtStamp:           now,
		Created:           now,
		LastModified:      now,
		Status:            "confirmed",
		Method:            "request",
		ProdID:            ical.ProdID,
		InviteLimit:       se.InviteLimit,
		OriginalOrganizer: mailto,
		Tenant:            tenant,
	}
	if ev.InviteLimit == 0 {
		ev.InviteLimit = config.EventInviteLimit()
	}
	return ev
}
