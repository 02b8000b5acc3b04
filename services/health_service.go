// d8cart/services/health_service.go

package services

import (
	"context"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is the part of a storage backend the health check needs.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// HealthCheckService implements gRPC health checking on top of the storage backend.
type HealthCheckService struct {
	healthpb.UnimplementedHealthServer
	store Pinger
	log   logrus.FieldLogger
}

// NewHealthCheckService returns a health server backed by store.
func NewHealthCheckService(store Pinger, log logrus.FieldLogger) *HealthCheckService {
	return &HealthCheckService{store: store, log: log}
}

// Check reports SERVING while the storage backend answers Ping.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if h.store.Ping(ctx) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	h.log.WithField("service", req.GetService()).Warn("HealthCheckService: storage ping failed")
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}
