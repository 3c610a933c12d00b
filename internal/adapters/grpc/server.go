package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

const serviceName = "viralforge.investment.v1.InvestmentInternalService"

type InvestmentInternalService interface {
	ActivateInvestment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectInvestment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunDistribution(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResolvePlan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// InvestmentInternalServer exposes lifecycle triggers to trusted mesh
// services. Calls run as the system actor.
type InvestmentInternalServer struct {
	service *application.Service
}

func NewInvestmentInternalServer(service *application.Service) *InvestmentInternalServer {
	return &InvestmentInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc InvestmentInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*InvestmentInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ActivateInvestment", Handler: structHandler("ActivateInvestment", svc.ActivateInvestment)},
			{MethodName: "RejectInvestment", Handler: structHandler("RejectInvestment", svc.RejectInvestment)},
			{MethodName: "RunDistribution", Handler: runDistributionHandler(svc)},
			{MethodName: "ResolvePlan", Handler: structHandler("ResolvePlan", svc.ResolvePlan)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "investment/v1/investment_internal.proto",
	}, svc)
}

func (s *InvestmentInternalServer) ActivateInvestment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID := stringField(req, "investment_id")
	if investmentID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing investment_id")
	}
	investment, err := s.service.ActivateInvestment(ctx, application.SystemActor(stringField(req, "request_id")), investmentID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(investment)
}

func (s *InvestmentInternalServer) RejectInvestment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	investmentID := stringField(req, "investment_id")
	if investmentID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing investment_id")
	}
	investment, err := s.service.RejectInvestment(ctx, application.SystemActor(stringField(req, "request_id")), investmentID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(investment)
}

func (s *InvestmentInternalServer) RunDistribution(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	result, err := s.service.RunDistributionBatch(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(result.Run)
}

func (s *InvestmentInternalServer) ResolvePlan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	plan, err := s.service.ResolvePlan(ctx, stringField(req, "participant_id"), stringField(req, "branch_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(plan)
}

func stringField(req *structpb.Struct, name string) string {
	value := req.GetFields()[name]
	if value == nil {
		return ""
	}
	return strings.TrimSpace(value.GetStringValue())
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrParticipantSuspended):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrConfigurationMissing), errors.Is(err, domain.ErrInvalidConfiguration):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(method string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func runDistributionHandler(svc InvestmentInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.RunDistribution(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/RunDistribution",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.RunDistribution(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
