package proto

import (
	"YoloDetServer/config"
	"YoloDetServer/engine"
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"YoloDetServer/monitor"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// DetectorFactory builds and loads a detector, normally engine.NewOnnxDetector.
type DetectorFactory func(cfg iface.EngineConfig, observer iface.Observer) (*engine.Detector, error)

type Server struct {
	Registry    *engine.Registry
	Monitor     *monitor.Monitor
	NewDetector DetectorFactory
	// Defaults fills the options an InitEngine request leaves unset.
	Defaults iface.EngineConfig

	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(registry *engine.Registry, mon *monitor.Monitor, factory DetectorFactory, defaults iface.EngineConfig) *Server {
	return &Server{
		Registry:    registry,
		Monitor:     mon,
		NewDetector: factory,
		Defaults:    defaults,
		closed:      make(chan struct{}),
	}
}

// Done is closed once a client has called Shutdown.
func (s *Server) Done() <-chan struct{} {
	return s.closed
}

func (s *Server) count(method string) {
	if s.Monitor != nil {
		s.Monitor.Request("grpc", method)
	}
}

func (s *Server) observer() iface.Observer {
	if s.Monitor == nil {
		return nil
	}
	return s.Monitor
}

func (s *Server) syncEngines() {
	if s.Monitor != nil {
		s.Monitor.SetEngines(s.Registry.Len())
	}
}

func (s *Server) engineConfig(req *InitEngineRequest) iface.EngineConfig {
	cfg := s.Defaults
	cfg.ModelPath = req.ModelPath
	// 未设置的阈值沿用默认配置
	if req.Confidence != nil {
		cfg.Conf = *req.Confidence
	}
	if req.Iou != nil {
		cfg.Iou = *req.Iou
	}
	cfg.Description = req.Description
	cfg.UseFp16 = req.UseFp16
	if req.InputSize > 0 {
		cfg.InputSize = int(req.InputSize)
	}
	if req.MaxDetections > 0 {
		cfg.MaxDetections = int(req.MaxDetections)
	}
	if req.NumClasses > 0 {
		cfg.NumClasses = int(req.NumClasses)
	}
	if req.NumThreads > 0 {
		cfg.NumThreads = int(req.NumThreads)
	}
	if req.UseBackgroundWorker != nil {
		cfg.UseBackgroundWorker = *req.UseBackgroundWorker
	}
	switch {
	case req.LabelsFile != "":
		cfg.Names = iface.NamesConf{IsFile: true, Data: req.LabelsFile}
	case len(req.Names) > 0:
		cfg.Names = iface.NamesConf{IsFile: false, Data: req.Names}
	}
	return cfg
}

func (s *Server) InitEngine(ctx context.Context, req *InitEngineRequest) (*InitEngineResponse, error) {
	s.count("InitEngine")
	if req.ModelPath == "" {
		return nil, status.Error(codes.InvalidArgument, "model path cannot be empty")
	}
	cfg := s.engineConfig(req)
	if err := config.ValidateEngine(cfg); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	detector, err := s.NewDetector(cfg, s.observer())
	if err != nil {
		logger.Log().Error("init engine failed", zap.String("ModelPath", req.ModelPath), zap.Error(err))
		var cerr *config.Error
		if errors.As(err, &cerr) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "init engine: %v", err)
	}
	id := s.Registry.Add(detector)
	s.syncEngines()
	logger.Log().Info("Initialized new engine",
		zap.String("ID", id),
		zap.String("ModelPath", req.ModelPath),
		zap.Float32("Confidence", cfg.Conf),
		zap.Float32("IoU", cfg.Iou),
		zap.Int("InputSize", cfg.InputSize))
	return &InitEngineResponse{
		Success: true,
		Id:      id,
		Message: "Successfully initialized engine",
	}, nil
}

func (s *Server) Inference(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error) {
	s.count("Inference")
	detector, ok := s.Registry.Get(req.Id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "detector with ID %s not found", req.Id)
	}
	format, err := iface.ParsePixelFormat(req.Format)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	img := iface.ImageData{
		Data:   req.ImgData,
		Width:  int(req.Width),
		Height: int(req.Height),
		Format: format,
	}
	res, err := detector.Detect(ctx, img)
	if err != nil {
		logger.Log().Error("inference failed", zap.String("ID", req.Id), zap.Error(err))
		return &InferenceResponse{
			Success: false,
			Message: err.Error(),
			Results: make([]*SingleResult, 0),
		}, nil
	}
	if res == nil {
		msg := "frame dropped: detector busy"
		if !detector.Ready() {
			msg = "frame dropped: detector not ready"
		}
		return &InferenceResponse{
			Success: false,
			Message: msg,
			Results: make([]*SingleResult, 0),
		}, nil
	}
	return toResponse(res), nil
}

func toResponse(res *iface.DetectionResult) *InferenceResponse {
	results := make([]*SingleResult, 0, len(res.Objects))
	for _, obj := range res.Objects {
		results = append(results, &SingleResult{
			Name:       obj.Label,
			ClassIndex: int32(obj.ClassIndex),
			Confidence: obj.Confidence,
			Box: &Box{
				Left:   obj.Box.Left,
				Top:    obj.Box.Top,
				Right:  obj.Box.Right,
				Bottom: obj.Box.Bottom,
			},
		})
	}
	return &InferenceResponse{
		Success:           true,
		Results:           results,
		PreprocessTimeMs:  res.PreprocessTimeMs,
		InferenceTimeMs:   res.InferenceTimeMs,
		PostprocessTimeMs: res.PostprocessTimeMs,
	}
}

func (s *Server) DestroyEngine(ctx context.Context, req *DestroyEngineRequest) (*DestroyEngineResponse, error) {
	s.count("DestroyEngine")
	removed, err := s.Registry.Remove(req.Id)
	if !removed {
		logger.Log().Error("detector not found with ID", zap.String("ID", req.Id))
		return nil, status.Errorf(codes.NotFound, "detector with ID %s not found", req.Id)
	}
	s.syncEngines()
	if err != nil {
		logger.Log().Warn("detector closed with error", zap.String("ID", req.Id), zap.Error(err))
	}
	logger.Log().Info("Destroyed engine", zap.String("ID", req.Id))
	return &DestroyEngineResponse{
		Success: true,
		Message: "Detector destroyed successfully",
	}, nil
}

func engineInfo(info engine.Info) *EngineInfo {
	return &EngineInfo{
		Id:          info.ID,
		Description: info.Description,
		ModelPath:   info.ModelPath,
		Names:       info.Labels,
		NumClasses:  int32(info.Classes),
		Confidence:  info.Confidence,
		Iou:         info.Iou,
		InputSize:   int32(info.InputSize),
		State:       info.State,
		Frames:      info.Stats.Frames,
		MeanMs:      info.Stats.MeanMs,
		P95Ms:       info.Stats.P95Ms,
		Fps:         info.Stats.MeanFPS,
	}
}

func (s *Server) CheckEngine(ctx context.Context, req *CheckEngineRequest) (*CheckEngineResponse, error) {
	s.count("CheckEngine")
	info, ok := s.Registry.Info(req.Id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "detector with ID %s not found", req.Id)
	}
	return &CheckEngineResponse{
		Success:    true,
		EngineInfo: engineInfo(info),
		Message:    "Detector status retrieved successfully",
	}, nil
}

func (s *Server) CheckAllEngine(ctx context.Context, req *emptypb.Empty) (*CheckAllEngineResponse, error) {
	s.count("CheckAllEngine")
	all := s.Registry.List()
	infos := make([]*EngineInfo, 0, len(all))
	for _, info := range all {
		infos = append(infos, engineInfo(info))
	}
	return &CheckAllEngineResponse{
		Success: true,
		Engines: infos,
		Message: "All Detectors status retrieved successfully",
	}, nil
}

// Shutdown 只关闭 Done 通道, 由 main 负责销毁检测器并停止服务
func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	s.count("Shutdown")
	s.closeOnce.Do(func() {
		logger.Log().Warn("Shutdown requested")
		close(s.closed)
	})
	return &emptypb.Empty{}, nil
}

// NewGRPCServer returns a grpc.Server with the JSON codec and srv registered.
func NewGRPCServer(srv DetectServiceServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, opts...)
	s := grpc.NewServer(opts...)
	RegisterDetectServiceServer(s, srv)
	return s
}

// StartGRPCServer listens on port and serves in the background.
func StartGRPCServer(port int, srv DetectServiceServer) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	s := NewGRPCServer(srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.Int("port", port))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
