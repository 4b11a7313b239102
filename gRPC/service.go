package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	DetectService_InitEngine_FullMethodName     = "/detect.DetectService/InitEngine"
	DetectService_Inference_FullMethodName      = "/detect.DetectService/Inference"
	DetectService_DestroyEngine_FullMethodName  = "/detect.DetectService/DestroyEngine"
	DetectService_CheckEngine_FullMethodName    = "/detect.DetectService/CheckEngine"
	DetectService_CheckAllEngine_FullMethodName = "/detect.DetectService/CheckAllEngine"
	DetectService_Shutdown_FullMethodName       = "/detect.DetectService/Shutdown"
)

type InitEngineRequest struct {
	ModelPath           string   `json:"modelPath"`
	Names               []string `json:"names,omitempty"`
	LabelsFile          string   `json:"labelsFile,omitempty"`
	Confidence          *float32 `json:"confidence,omitempty"`
	Iou                 *float32 `json:"iou,omitempty"`
	InputSize           int32    `json:"inputSize,omitempty"`
	MaxDetections       int32    `json:"maxDetections,omitempty"`
	NumClasses          int32    `json:"numClasses,omitempty"`
	NumThreads          int32    `json:"numThreads,omitempty"`
	UseFp16             bool     `json:"useFp16,omitempty"`
	UseBackgroundWorker *bool    `json:"useBackgroundWorker,omitempty"`
	Description         string   `json:"description,omitempty"`
}

type InitEngineResponse struct {
	Success bool   `json:"success"`
	Id      string `json:"id"`
	Message string `json:"message"`
}

// InferenceRequest carries one frame. Format is one of encoded (default),
// rgba8888, bgra8888 or yuv420; Width and Height are required for raw frames.
type InferenceRequest struct {
	Id      string `json:"id"`
	ImgData []byte `json:"imgData"`
	Format  string `json:"format,omitempty"`
	Width   int32  `json:"width,omitempty"`
	Height  int32  `json:"height,omitempty"`
}

type Box struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

type SingleResult struct {
	Name       string  `json:"name"`
	ClassIndex int32   `json:"classIndex"`
	Confidence float32 `json:"confidence"`
	Box        *Box    `json:"box"`
}

type InferenceResponse struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message,omitempty"`
	Results           []*SingleResult `json:"results"`
	PreprocessTimeMs  float64         `json:"preprocessTimeMs"`
	InferenceTimeMs   float64         `json:"inferenceTimeMs"`
	PostprocessTimeMs float64         `json:"postprocessTimeMs"`
}

type DestroyEngineRequest struct {
	Id string `json:"id"`
}

type DestroyEngineResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CheckEngineRequest struct {
	Id string `json:"id"`
}

type EngineInfo struct {
	Id          string   `json:"id"`
	Description string   `json:"description"`
	ModelPath   string   `json:"modelPath"`
	Names       []string `json:"names"`
	NumClasses  int32    `json:"numClasses"`
	Confidence  float32  `json:"confidence"`
	Iou         float32  `json:"iou"`
	InputSize   int32    `json:"inputSize"`
	State       string   `json:"state"`
	Frames      uint64   `json:"frames"`
	MeanMs      float64  `json:"meanMs"`
	P95Ms       float64  `json:"p95Ms"`
	Fps         float64  `json:"fps"`
}

type CheckEngineResponse struct {
	Success    bool        `json:"success"`
	EngineInfo *EngineInfo `json:"engineInfo"`
	Message    string      `json:"message"`
}

type CheckAllEngineResponse struct {
	Success bool          `json:"success"`
	Engines []*EngineInfo `json:"engines"`
	Message string        `json:"message"`
}

type DetectServiceServer interface {
	InitEngine(context.Context, *InitEngineRequest) (*InitEngineResponse, error)
	Inference(context.Context, *InferenceRequest) (*InferenceResponse, error)
	DestroyEngine(context.Context, *DestroyEngineRequest) (*DestroyEngineResponse, error)
	CheckEngine(context.Context, *CheckEngineRequest) (*CheckEngineResponse, error)
	CheckAllEngine(context.Context, *emptypb.Empty) (*CheckAllEngineResponse, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[Req any, Resp any](fullMethod string, call func(DetectServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DetectServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DetectServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var DetectService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "detect.DetectService",
	HandlerType: (*DetectServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitEngine", Handler: unaryHandler(DetectService_InitEngine_FullMethodName, DetectServiceServer.InitEngine)},
		{MethodName: "Inference", Handler: unaryHandler(DetectService_Inference_FullMethodName, DetectServiceServer.Inference)},
		{MethodName: "DestroyEngine", Handler: unaryHandler(DetectService_DestroyEngine_FullMethodName, DetectServiceServer.DestroyEngine)},
		{MethodName: "CheckEngine", Handler: unaryHandler(DetectService_CheckEngine_FullMethodName, DetectServiceServer.CheckEngine)},
		{MethodName: "CheckAllEngine", Handler: unaryHandler(DetectService_CheckAllEngine_FullMethodName, DetectServiceServer.CheckAllEngine)},
		{MethodName: "Shutdown", Handler: unaryHandler(DetectService_Shutdown_FullMethodName, DetectServiceServer.Shutdown)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "detect.proto",
}

func RegisterDetectServiceServer(s grpc.ServiceRegistrar, srv DetectServiceServer) {
	s.RegisterService(&DetectService_ServiceDesc, srv)
}

type DetectServiceClient interface {
	InitEngine(ctx context.Context, in *InitEngineRequest, opts ...grpc.CallOption) (*InitEngineResponse, error)
	Inference(ctx context.Context, in *InferenceRequest, opts ...grpc.CallOption) (*InferenceResponse, error)
	DestroyEngine(ctx context.Context, in *DestroyEngineRequest, opts ...grpc.CallOption) (*DestroyEngineResponse, error)
	CheckEngine(ctx context.Context, in *CheckEngineRequest, opts ...grpc.CallOption) (*CheckEngineResponse, error)
	CheckAllEngine(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*CheckAllEngineResponse, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type detectServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDetectServiceClient returns a client that always speaks the JSON codec.
func NewDetectServiceClient(cc grpc.ClientConnInterface) DetectServiceClient {
	return &detectServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *detectServiceClient) InitEngine(ctx context.Context, in *InitEngineRequest, opts ...grpc.CallOption) (*InitEngineResponse, error) {
	return invoke[InitEngineResponse](ctx, c.cc, DetectService_InitEngine_FullMethodName, in, opts)
}

func (c *detectServiceClient) Inference(ctx context.Context, in *InferenceRequest, opts ...grpc.CallOption) (*InferenceResponse, error) {
	return invoke[InferenceResponse](ctx, c.cc, DetectService_Inference_FullMethodName, in, opts)
}

func (c *detectServiceClient) DestroyEngine(ctx context.Context, in *DestroyEngineRequest, opts ...grpc.CallOption) (*DestroyEngineResponse, error) {
	return invoke[DestroyEngineResponse](ctx, c.cc, DetectService_DestroyEngine_FullMethodName, in, opts)
}

func (c *detectServiceClient) CheckEngine(ctx context.Context, in *CheckEngineRequest, opts ...grpc.CallOption) (*CheckEngineResponse, error) {
	return invoke[CheckEngineResponse](ctx, c.cc, DetectService_CheckEngine_FullMethodName, in, opts)
}

func (c *detectServiceClient) CheckAllEngine(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*CheckAllEngineResponse, error) {
	return invoke[CheckAllEngineResponse](ctx, c.cc, DetectService_CheckAllEngine_FullMethodName, in, opts)
}

func (c *detectServiceClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, DetectService_Shutdown_FullMethodName, in, opts)
}
