package engine

import (
	"YoloDetServer/logger"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var (
	envMu          sync.Mutex
	envInitialized bool
)

func detArch(system, arch string) (string, error) {
	switch arch {
	case "amd64":
		return fmt.Sprintf("%s-%s", system, "x64"), nil
	case "386":
		return fmt.Sprintf("%s-%s", system, "x86"), nil
	case "arm64":
		return fmt.Sprintf("%s-%s", system, "arm64"), nil
	default:
		return "", fmt.Errorf("architecture %s not supported", arch)
	}
}

func getPlatform(system, arch string) (string, error) {
	switch system {
	case "windows", "linux", "darwin":
		return detArch(system, arch)
	default:
		return "", fmt.Errorf("operating system %s not supported", system)
	}
}

// sharedLibName is the onnxruntime library file name for the platform.
func sharedLibName(system string) string {
	switch system {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// libCandidates lists the directories searched for the runtime library: next
// to the executable, the working directory, their src/ and src/<platform>
// children, and the .dist bundles.
func libCandidates(exeDir, cwd, platform string) []string {
	var dirs []string
	for _, base := range []string{exeDir, cwd} {
		if base == "" {
			continue
		}
		dirs = append(dirs,
			base,
			filepath.Join(base, "src"),
			filepath.Join(base, "src", platform),
			filepath.Join(base, ".dist", "src"),
		)
	}
	return dirs
}

// FindSharedLibrary returns configured if set, otherwise the first runtime
// library found in the candidate directories.
func FindSharedLibrary(configured string) (string, error) {
	if configured != "" {
		if fileExists(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("onnxruntime library %s not found", configured)
	}
	platform, err := getPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
	}
	cwd, _ := os.Getwd()

	name := sharedLibName(runtime.GOOS)
	tried := libCandidates(exeDir, cwd, platform)
	for _, dir := range tried {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p, nil
		}
		// versioned names such as libonnxruntime.so.1.20.0
		if m := globFirst(dir, name+".*"); m != "" {
			return m, nil
		}
	}
	return "", fmt.Errorf("%s not found, tried:\n  %s", name, strings.Join(tried, "\n  "))
}

// InitRuntime loads the onnxruntime shared library once per process.
func InitRuntime(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envInitialized {
		return nil
	}
	path, err := FindSharedLibrary(libPath)
	if err != nil {
		return err
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime from %s: %w", path, err)
	}
	envInitialized = true
	logger.Log().Info("onnxruntime loaded", zap.String("path", path))
	return nil
}

func DestroyRuntime() {
	envMu.Lock()
	defer envMu.Unlock()
	if !envInitialized {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		logger.Log().Warn("destroy onnxruntime environment", zap.Error(err))
	}
	envInitialized = false
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func globFirst(dir, pat string) string {
	if dir == "" {
		return ""
	}
	ms, err := filepath.Glob(filepath.Join(dir, pat))
	if err != nil || len(ms) == 0 {
		return ""
	}
	return ms[0]
}
