package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The container gateway is a single unary RPC whose messages are
// google.protobuf.Struct values, mirroring the callContainer contract.
const (
	GatewayServiceName = "srquick.container.v1.ContainerGateway"
	GatewayCallMethod  = "/" + GatewayServiceName + "/Call"

	fieldPath    = "path"
	fieldMethod  = "method"
	fieldHeader  = "header"
	fieldData    = "data"
	fieldConfig  = "config"
	fieldEnv     = "env"
	fieldStatus  = "status"
	gatewayProto = "srquick/container/v1/gateway.proto"
)

// GatewayServer is implemented by container gateway servers.
type GatewayServer interface {
	Call(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGatewayServer registers server on registrar.
func RegisterGatewayServer(registrar grpc.ServiceRegistrar, server GatewayServer) {
	registrar.RegisterService(&gatewayServiceDesc, server)
}

var gatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: GatewayServiceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: gatewayCallHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: gatewayProto,
}

func gatewayCallHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(structpb.Struct)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GatewayServer).Call(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GatewayCallMethod}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GatewayServer).Call(ctx, request.(*structpb.Struct))
	}
	return interceptor(ctx, request, info, handler)
}

// GatewayRequest is the decoded form of a Call request.
type GatewayRequest struct {
	Path   string
	Method string
	Header map[string]string
	// Data is JSON text; empty when the call has no body.
	Data string
	Env  string
}

// GatewayResponse is the decoded form of a Call response.
type GatewayResponse struct {
	Status int
	Header map[string]string
	// Data is the response body as JSON text.
	Data string
}

// Struct encodes the request message.
func (request GatewayRequest) Struct() (*structpb.Struct, error) {
	fields := map[string]any{
		fieldPath:   request.Path,
		fieldMethod: request.Method,
		fieldHeader: stringMap(request.Header),
		fieldConfig: map[string]any{fieldEnv: request.Env},
	}
	if request.Data != "" {
		fields[fieldData] = request.Data
	}
	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode gateway request: %w", err)
	}
	return message, nil
}

// ParseGatewayRequest decodes a request message.
func ParseGatewayRequest(message *structpb.Struct) (GatewayRequest, error) {
	if message == nil {
		return GatewayRequest{}, fmt.Errorf("%w: empty gateway request", ErrInvalidRequest)
	}
	fields := message.GetFields()
	request := GatewayRequest{
		Path:   fields[fieldPath].GetStringValue(),
		Method: strings.ToUpper(fields[fieldMethod].GetStringValue()),
		Header: headerFromValue(fields[fieldHeader]),
		Env:    fields[fieldConfig].GetStructValue().GetFields()[fieldEnv].GetStringValue(),
	}
	data, err := jsonText(fields[fieldData])
	if err != nil {
		return GatewayRequest{}, err
	}
	request.Data = data
	if !strings.HasPrefix(request.Path, "/") {
		return GatewayRequest{}, fmt.Errorf("%w: gateway path must start with /", ErrInvalidRequest)
	}
	return request, nil
}

// Struct encodes the response message. Data travels as a string value.
func (response GatewayResponse) Struct() (*structpb.Struct, error) {
	message, err := structpb.NewStruct(map[string]any{
		fieldStatus: response.Status,
		fieldHeader: stringMap(response.Header),
		fieldData:   response.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode gateway response: %w", err)
	}
	return message, nil
}

// ParseGatewayResponse decodes a response message. Data may arrive as a
// string holding JSON text or as a structured value.
func ParseGatewayResponse(message *structpb.Struct) (GatewayResponse, error) {
	if message == nil {
		return GatewayResponse{}, fmt.Errorf("empty gateway response")
	}
	fields := message.GetFields()
	data, err := jsonText(fields[fieldData])
	if err != nil {
		return GatewayResponse{}, err
	}
	return GatewayResponse{
		Status: int(fields[fieldStatus].GetNumberValue()),
		Header: headerFromValue(fields[fieldHeader]),
		Data:   data,
	}, nil
}

func jsonText(value *structpb.Value) (string, error) {
	if value == nil {
		return "", nil
	}
	switch kind := value.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	default:
		encoded, err := json.Marshal(value.AsInterface())
		if err != nil {
			return "", fmt.Errorf("encode gateway data: %w", err)
		}
		return string(encoded), nil
	}
}

func stringMap(header map[string]string) map[string]any {
	converted := make(map[string]any, len(header))
	for key, value := range header {
		converted[key] = value
	}
	return converted
}

func headerFromValue(value *structpb.Value) map[string]string {
	header := map[string]string{}
	for key, entry := range value.GetStructValue().GetFields() {
		header[key] = entry.GetStringValue()
	}
	return header
}
