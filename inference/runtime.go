package inference

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// Locations probed when no shared library path is configured
var defaultLibraryPaths = []string{
	"./libonnxruntime.so",
	"./build/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"./libonnxruntime.dylib",
	"./build/libonnxruntime.dylib",
}

// InitRuntime prepares the process-wide ONNX Runtime environment. It is safe
// to call more than once; only the first call loads the library.
func InitRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if onnxruntime.IsInitialized() {
		return nil
	}

	if libPath == "" {
		for _, path := range defaultLibraryPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}
	if libPath != "" {
		onnxruntime.SetSharedLibraryPath(libPath)
	}

	if err := onnxruntime.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}

	slog.Info("[Runtime] ONNX Runtime initialized", slog.String("library", libPath))
	return nil
}

// ShutdownRuntime releases the ONNX Runtime environment. All pairs must be
// closed first.
func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !onnxruntime.IsInitialized() {
		return nil
	}
	if err := onnxruntime.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX Runtime environment: %w", err)
	}
	return nil
}
