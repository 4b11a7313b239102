package engine

import (
	iface "YoloDetServer/interface"
	"fmt"
	"os"
	"reflect"
	"strings"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

// Reasons reported to the Observer when a frame produces no result.
const (
	DropBusy     = "busy"
	DropNotReady = "not_ready"
)

func StateName(state int32) string {
	switch state {
	case UNREGISTERED:
		return "unregistered"
	case REGISTERED:
		return "registered"
	case IDLE:
		return "idle"
	case BUSY:
		return "busy"
	default:
		return "unknown"
	}
}

// ReadLinesReadFile 按行读取标签文件, 支持 Windows CRLF, 跳过空行
func ReadLinesReadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(string(b), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimRight(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// resolveNames turns a NamesConf into the label list. An empty inline list
// falls back to the COCO classes.
func resolveNames(names iface.NamesConf) ([]string, error) {
	if names.IsFile {
		path, _ := names.Data.(string)
		lines, err := ReadLinesReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read labels file: %w", err)
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("labels file %s is empty", path)
		}
		return lines, nil
	}
	if names.Data == nil {
		return CocoLabels(), nil
	}
	rv := reflect.ValueOf(names.Data)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("names must be a slice or a file path, got %T", names.Data)
	}
	n := rv.Len()
	if n == 0 {
		return CocoLabels(), nil
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return nil, fmt.Errorf("label %d is %T, not a string", i, rv.Index(i).Interface())
		}
		out[i] = s
	}
	return out, nil
}

// numClasses 模型输出的类别数, 未配置时按标签数计算
func numClasses(cfg iface.EngineConfig, names []string) int {
	if cfg.NumClasses > 0 {
		return cfg.NumClasses
	}
	return len(names)
}
