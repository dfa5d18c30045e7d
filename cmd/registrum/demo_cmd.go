package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/registrum/registrum/pkg/audit"
	"github.com/registrum/registrum/pkg/config"
	"github.com/registrum/registrum/pkg/identity"
	"github.com/registrum/registrum/pkg/observability"
	"github.com/registrum/registrum/pkg/record"
	"github.com/registrum/registrum/pkg/signature"
	"github.com/registrum/registrum/pkg/store"
	"github.com/registrum/registrum/pkg/verify"
)

// runDemoCmd walks one record CREATE -> SUBMIT -> SIGN -> DELIVER against
// the configured store and verifies the resulting chain.
func runDemoCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.DatabasePath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()

	s, err := store.OpenSQLite(*dbPath)
	if err != nil {
		slog.Error("opening store failed", "err", err)
		return 1
	}
	defer func() { _ = s.Close() }()

	auditor := audit.NewLogger()
	if cfg.AuditLogPath != "" {
		f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			slog.Error("opening audit log failed", "err", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		auditor = audit.NewLoggerWithWriter(f)
	}

	obs, err := observability.New(slog.Default())
	if err != nil {
		slog.Error("observability init failed", "err", err)
		return 1
	}

	issuer := signature.NewSelfAttestedIssuer(cfg.IssuerName, cfg.LegalNotice)
	machine := record.NewStateMachine(issuer,
		record.WithAuditLogger(auditor),
		record.WithInstruments(obs),
	)

	agent := identity.Actor{ID: "agent-demo", Name: "Demo Clerk", Role: identity.RoleAgent}
	validator := identity.Actor{ID: "officer-demo", Name: "Demo Officer", Role: identity.RoleValidator}

	rec, err := machine.Create(ctx, record.CivilDetails{
		RegistrationNumber: "2024-DEMO-000001",
		SubjectName:        "Lucie Martin",
		BirthDate:          "2024-02-29",
		BirthPlace:         "Paris",
		MotherName:         "Claire Martin",
	}, agent, "initial registration")
	if err != nil {
		slog.Error("create failed", "err", err)
		return 1
	}
	fmt.Fprintf(stdout, "created record %s in %s\n", rec.ID, rec.Status)

	for _, step := range []struct {
		transition record.Transition
		actor      identity.Actor
	}{
		{record.TransitionSubmit, agent},
		{record.TransitionSign, validator},
		{record.TransitionDeliver, validator},
	} {
		entry, err := machine.Apply(ctx, rec, step.transition, step.actor, nil)
		if err != nil {
			slog.Error("transition failed", "transition", step.transition, "err", err)
			return 1
		}
		fmt.Fprintf(stdout, "%-8s -> %-9s entry %d hash %s\n",
			step.transition, rec.Status, entry.Sequence, entry.Hash[:12])
	}

	if rec.PKISignature != nil {
		fmt.Fprintf(stdout, "sealed with %s (%s)\n",
			rec.PKISignature.CertificateID, rec.PKISignature.Algorithm)
	}

	if err := s.Save(ctx, rec); err != nil {
		slog.Error("saving record failed", "err", err)
		return 1
	}

	report := verify.Verify(rec.History.Snapshot())
	obs.ChainVerified(ctx, string(report.Status))
	fmt.Fprintf(stdout, "chain: %s (%d entries)\n", report.Status, report.Entries)
	if !report.OK() {
		return 1
	}
	return 0
}
