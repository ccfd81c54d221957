package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sara-Samara/HealthAidProj-sub002/app"
	"github.com/Sara-Samara/HealthAidProj-sub002/config"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/dispatch"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inject a synthetic emergency report",
	RunE:  reportEmergency,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func reportEmergency(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("report-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()
	svc.Coordinator.Start()

	loc := model.GeoPoint{Lat: 40.0, Lon: -75.0}
	if _, err := svc.Coordinator.RegisterResponder(model.Responder{
		UserID:          "test-responder",
		Tags:            []string{"medic"},
		Location:        model.GeoPoint{Lat: 40.004, Lon: -75.0},
		Available:       true,
		ResponseRadiusM: 10000,
		Rating:          4.5,
	}); err != nil {
		return fmt.Errorf("register responder: %w", err)
	}

	caseID, err := svc.Coordinator.ReportEmergency(ctx, dispatch.Report{
		PatientID:   "test-patient",
		Type:        "cardiac",
		Priority:    model.PriorityCritical,
		Location:    loc,
		Description: "synthetic smoke-test report",
	})
	if err != nil {
		return fmt.Errorf("report emergency: %w", err)
	}
	logg.Infof("reported case %s", caseID)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			return fmt.Errorf("case %s not assigned in time", caseID)
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
		cs, err := svc.Coordinator.GetCase(caseID)
		if err != nil {
			return err
		}
		if cs.Status == model.StatusAssigned {
			logg.Infof("case %s assigned to %s", caseID, cs.ResponderID)
			return nil
		}
	}
}
