package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/campaign-consult/internal/probe"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the server's gRPC health service",
		Long:  "Exits non-zero unless the server reports SERVING. Suitable as a container health check.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			service, _ := cmd.Flags().GetString("service")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			status, err := probe.Check(ctx, addr, service)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("server is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", defaultHealthAddr(), "gRPC health address")
	cmd.Flags().String("service", probe.ServiceName, "Service to check; empty for the whole server")
	cmd.Flags().Duration("timeout", 5*time.Second, "Check timeout")
	return cmd
}

func defaultHealthAddr() string {
	port := os.Getenv("GRPC_HEALTH_PORT")
	if port == "" {
		port = "9090"
	}
	return "localhost:" + port
}
