package Adhoc

import (
	"YoloDetServer/logger"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CpuInstance  = 0x2002
	CudaInstance = 0x2003

	DefaultInterval = 5 * time.Second
)

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	HTTPPort      int    `json:"httpPort"`
	InstanceClass int    `json:"instanceClass"`
	Engines       int    `json:"engines"`
	TimeStamp     int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

// Heartbeat announces this instance to a registration server until its
// context is cancelled.
type Heartbeat struct {
	// 注册服务器地址 host:port
	Addr          string
	IP            string
	RPCPort       int
	HTTPPort      int
	InstanceClass int
	Interval      time.Duration
	// Engines reports the number of loaded detectors at send time.
	Engines func() int

	id     string
	client *resty.Client
}

func NewHeartbeat(host string, port int) *Heartbeat {
	return &Heartbeat{
		Addr:          fmt.Sprintf("%s:%d", host, port),
		InstanceClass: CpuInstance,
		Interval:      DefaultInterval,
		id:            uuid.NewString(),
	}
}

func (h *Heartbeat) ID() string { return h.id }

func (h *Heartbeat) interval() time.Duration {
	if h.Interval <= 0 {
		return DefaultInterval
	}
	return h.Interval
}

// Send posts one registration. Failures are returned, never retried here.
func (h *Heartbeat) Send(ctx context.Context) (resp *RegisterResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heartbeat panic: %v", r)
		}
	}()
	if h.client == nil {
		h.client = resty.New().SetTimeout(h.interval())
	}
	if h.id == "" {
		h.id = uuid.NewString()
	}
	engines := 0
	if h.Engines != nil {
		engines = h.Engines()
	}
	var body RegisterResponse
	res, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(RegisterRequest{ // resty 会 JSON 编码
			Id:            h.id,
			IP:            h.IP,
			Port:          h.RPCPort,
			HTTPPort:      h.HTTPPort,
			InstanceClass: h.InstanceClass,
			Engines:       engines,
			TimeStamp:     time.Now().Unix(),
		}).
		SetResult(&body). // 2xx 自动反序列化到 body
		Post(fmt.Sprintf("http://%s/api/register", h.Addr))
	if err != nil {
		return nil, fmt.Errorf("register request: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("register server returned %s: %s", res.Status(), res.String())
	}
	return &body, nil
}

// Run sends a heartbeat immediately and then on every tick.
func (h *Heartbeat) Run(ctx context.Context) {
	log := logger.Named("adhoc").With(zap.String("server", h.Addr))
	ticker := time.NewTicker(h.interval())
	defer ticker.Stop()
	for {
		if _, err := h.Send(ctx); err != nil && ctx.Err() == nil {
			log.Error("heartbeat failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("heartbeat stopped")
			return
		case <-ticker.C:
		}
	}
}

// GetOutboundIP 获取本机出口 IP
// 8.8.8.8 只是用来建立路由路径, UDP 不会真正发包, 不需要联网（只要有路由表）
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
